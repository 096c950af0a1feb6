package handlers_test

import (
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v2 "github.com/tower-qa/tower-qa/api/v2"
	"github.com/tower-qa/tower-qa/internal/config"
	"github.com/tower-qa/tower-qa/internal/license"
	"github.com/tower-qa/tower-qa/internal/models"
)

var _ = Describe("Config Handlers", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture(config.Server{CPUCapacity: 1, MemCapacity: 1})
	})

	AfterEach(func() {
		f.close()
	})

	It("should report no license by default", func() {
		var cfg v2.Config
		w := f.do(http.MethodGet, "/config/", nil, &cfg)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(cfg.Version).To(Equal("test"))
		Expect(cfg.LicenseInfo).To(BeNil())
	})

	// Given a generated enterprise license
	// When it is posted to /config/
	// Then the license info is valid and carries the enterprise features
	It("should install a license", func() {
		// Arrange
		l, err := license.Generate(license.WithType(models.LicenseTypeEnterprise), license.WithDays(10), license.WithInstanceCount(50))
		Expect(err).NotTo(HaveOccurred())

		// Act
		var cfg v2.Config
		w := f.do(http.MethodPost, "/config/", l, &cfg)

		// Assert
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(cfg.LicenseInfo).NotTo(BeNil())
		Expect(cfg.LicenseInfo.Valid).To(BeTrue())
		Expect(cfg.LicenseInfo.Compliant).To(BeTrue())
		Expect(cfg.LicenseInfo.LicenseType).To(Equal("enterprise"))
		Expect(cfg.LicenseInfo.AvailableInstances).To(Equal(50))
		Expect(cfg.LicenseInfo.Features).To(HaveKeyWithValue("ha", true))
	})

	It("should reject a tampered license key", func() {
		l, err := license.Generate(license.WithDays(10))
		Expect(err).NotTo(HaveOccurred())
		l.InstanceCount++

		var body map[string][]string
		w := f.do(http.MethodPost, "/config/", l, nil)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(decode(w, &body)).To(Succeed())
		Expect(body).To(HaveKey("license_key"))
	})

	It("should reject a license without an accepted eula", func() {
		l, err := license.Generate(license.WithDays(10), license.WithEulaAccepted(false))
		Expect(err).NotTo(HaveOccurred())

		w := f.do(http.MethodPost, "/config/", l, nil)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("should delete the license", func() {
		l, err := license.Generate(license.WithDays(10))
		Expect(err).NotTo(HaveOccurred())
		f.do(http.MethodPost, "/config/", l, nil)

		w := f.do(http.MethodDelete, "/config/", nil, nil)
		Expect(w.Code).To(Equal(http.StatusNoContent))

		var cfg v2.Config
		f.do(http.MethodGet, "/config/", nil, &cfg)
		Expect(cfg.LicenseInfo).To(BeNil())
	})
})
