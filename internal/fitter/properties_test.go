package fitter_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/vtxfit/internal/fitter"
	"github.com/san-kum/vtxfit/internal/geom"
)

func smallCov() *mat.SymDense {
	c := mat.NewSymDense(6, nil)
	for i := 0; i < 3; i++ {
		c.SetSym(i, i, 0.0025)
		c.SetSym(i+3, i+3, 1e-4)
	}
	return c
}

var _ = Describe("Fitter", func() {
	var (
		f   *fitter.Fitter
		res *fitter.Result
	)

	BeforeEach(func() {
		var err error
		f, err = fitter.New(3)
		Expect(err).NotTo(HaveOccurred())

		cov := smallCov()
		Expect(f.SetDaughter(0, 1, geom.Vec3{1, 1, 0}, geom.Vec3{1, 1, 0}, cov)).To(Succeed())
		Expect(f.SetDaughter(1, -1, geom.Vec3{1, -1, 0.1}, geom.Vec3{1.2, -1.2, 0.12}, cov)).To(Succeed())
		Expect(f.SetDaughter(2, 0, geom.Vec3{0.3, 0.2, 1}, geom.Vec3{0.15, 0.1, 0.5}, cov)).To(Succeed())

		res, err = f.Fit(fitter.Config{Iterations: 4, MagneticField: 1.5})
		Expect(err).NotTo(HaveOccurred())
	})

	It("reports a non-negative chi2 and ndf", func() {
		Expect(res.Chi2).To(BeNumerically(">=", 0))
		Expect(res.NDF).To(Equal(3)) // 2*3 - 3
	})

	It("records one delta and one chi2 per iteration", func() {
		Expect(res.Deltas).To(HaveLen(4))
		Expect(res.Chi2History).To(HaveLen(4))
		Expect(res.Iterations()).To(Equal(4))
	})

	It("returns exactly symmetric daughter covariances", func() {
		for i := 0; i < f.NumDaughters(); i++ {
			cov, err := f.DaughterCovariance(i)
			Expect(err).NotTo(HaveOccurred())
			for r := 0; r < 6; r++ {
				for c := 0; c < 6; c++ {
					Expect(cov.At(r, c)).To(Equal(cov.At(c, r)))
				}
			}
		}
	})

	It("returns positive semi-definite daughter covariances", func() {
		for i := 0; i < f.NumDaughters(); i++ {
			cov, err := f.DaughterCovariance(i)
			Expect(err).NotTo(HaveOccurred())

			var eig mat.EigenSym
			Expect(eig.Factorize(cov, false)).To(BeTrue())
			for _, v := range eig.Values(nil) {
				Expect(v).To(BeNumerically(">=", -1e-12))
			}
		}
	})

	It("shrinks the fitted momentum uncertainty below the measured one", func() {
		meas := smallCov()
		for i := 0; i < f.NumDaughters(); i++ {
			cov, err := f.DaughterCovariance(i)
			Expect(err).NotTo(HaveOccurred())
			for k := 3; k < 6; k++ {
				Expect(cov.At(k, k)).To(BeNumerically("<=", meas.At(k, k)*(1+1e-9)))
			}
		}
	})

	It("rejects out-of-range daughter accessors", func() {
		_, err := f.DaughterMomentum(3)
		Expect(err).To(MatchError(fitter.ErrInvalidArgument))
		_, err = f.DaughterCovariance(-1)
		Expect(err).To(MatchError(fitter.ErrInvalidArgument))
	})

	It("reseeds after Reset", func() {
		v1, err := f.Vertex()
		Expect(err).NotTo(HaveOccurred())

		f.Reset()
		_, err = f.Vertex()
		Expect(err).To(MatchError(fitter.ErrNotFitted))

		res2, err := f.Fit(fitter.Config{Iterations: 4, MagneticField: 1.5})
		Expect(err).NotTo(HaveOccurred())
		Expect(res2.Vertex.Sub(v1).Norm()).To(BeNumerically("<", 1e-12))
	})
})
