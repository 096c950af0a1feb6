package services_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tower-qa/tower-qa/internal/license"
	"github.com/tower-qa/tower-qa/internal/models"
	"github.com/tower-qa/tower-qa/internal/services"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
)

var _ = Describe("LicenseService", func() {
	var (
		svc   *services.LicenseService
		hosts int
	)

	BeforeEach(func() {
		hosts = 0
		svc = services.NewLicenseService(func() int { return hosts })
	})

	It("should have no license until one is installed", func() {
		Expect(svc.Info()).To(BeNil())
	})

	// Given a freshly generated license
	// When it is installed
	// Then it is valid, compliant and reports its remaining time
	It("should install a valid license", func() {
		// Arrange
		l, err := license.Generate(license.WithDays(30), license.WithInstanceCount(5))
		Expect(err).NotTo(HaveOccurred())

		// Act
		Expect(svc.Install(l)).To(Succeed())

		// Assert
		info := svc.Info()
		Expect(info).NotTo(BeNil())
		Expect(info.Valid).To(BeTrue())
		Expect(info.Compliant).To(BeTrue())
		Expect(info.AvailableInstances).To(Equal(5))
		Expect(info.TimeRemaining).To(BeNumerically("~", int64((30*24*time.Hour).Seconds()), 60))
		Expect(info.GracePeriodRemaining).To(BeNumerically(">", info.TimeRemaining))
	})

	It("should report an expired license as non compliant", func() {
		l, err := license.Generate(license.WithDays(-1))
		Expect(err).NotTo(HaveOccurred())
		Expect(svc.Install(l)).To(Succeed())

		Expect(svc.Info().Compliant).To(BeFalse())
	})

	It("should report too many hosts as non compliant", func() {
		l, err := license.Generate(license.WithDays(10), license.WithInstanceCount(1))
		Expect(err).NotTo(HaveOccurred())
		Expect(svc.Install(l)).To(Succeed())
		hosts = 2

		Expect(svc.Info().Compliant).To(BeFalse())
	})

	It("should reject a license without an accepted eula", func() {
		l, err := license.Generate(license.WithDays(10), license.WithEulaAccepted(false))
		Expect(err).NotTo(HaveOccurred())
		Expect(srvErrors.IsInvalidArgumentError(svc.Install(l))).To(BeTrue())
	})

	It("should reject a tampered license", func() {
		l, err := license.Generate(license.WithDays(10))
		Expect(err).NotTo(HaveOccurred())
		l.InstanceCount = 9999
		Expect(svc.Install(l)).NotTo(Succeed())
	})

	// Given a watched license file
	// When the file is rewritten with a larger license
	// Then the installed license follows it
	It("should reload the license when the file changes", func(ctx SpecContext) {
		// Arrange
		path := filepath.Join(GinkgoT().TempDir(), "license.json")
		first, err := license.Generate(license.WithDays(10), license.WithInstanceCount(10))
		Expect(err).NotTo(HaveOccurred())
		Expect(license.WriteFile(path, first)).To(Succeed())
		Expect(svc.Watch(ctx, path)).To(Succeed())
		Expect(svc.Info().InstanceCount).To(Equal(10))

		// Act
		second, err := license.Generate(license.WithDays(10), license.WithInstanceCount(50), license.WithType(models.LicenseTypeEnterprise))
		Expect(err).NotTo(HaveOccurred())
		Expect(license.WriteFile(path, second)).To(Succeed())

		// Assert
		Eventually(func() int { return svc.Info().InstanceCount }).WithTimeout(3 * time.Second).Should(Equal(50))
	})

	It("should fail to watch a missing file", func(ctx SpecContext) {
		Expect(svc.Watch(ctx, filepath.Join(os.TempDir(), "does-not-exist.json"))).NotTo(Succeed())
	})
})
