package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tower-qa/tower-qa/internal/client"
	"github.com/tower-qa/tower-qa/internal/license"
	"github.com/tower-qa/tower-qa/internal/models"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
)

var _ = Describe("Client", func() {
	var (
		ctx context.Context
		c   *client.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		_, c = startController()
	})

	It("should reject an invalid base url", func() {
		_, err := client.New("not a url", models.User{})
		Expect(err).To(HaveOccurred())
	})

	It("should ping and identify the user", func() {
		p, err := c.Ping(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Instances).To(HaveLen(1))

		me, err := c.Me(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(me.Username).To(Equal("admin"))
	})

	Describe("errors", func() {
		// Given an object that does not exist
		// When it is fetched
		// Then the error is both an APIError carrying 404 and a not found error
		It("should report 404 as not found", func() {
			_, err := c.Get(ctx, "projects", 99)

			Expect(err).To(HaveOccurred())
			Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
			Expect(srvErrors.IsAPIError(err)).To(BeTrue())
			Expect(srvErrors.StatusCode(err)).To(Equal(http.StatusNotFound))
		})

		It("should carry the body of a 400", func() {
			_, err := c.Create(ctx, "projects", map[string]any{})

			var apiErr *srvErrors.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(apiErr.Method).To(Equal(http.MethodPost))
			Expect(apiErr.Path).To(Equal("/api/v2/projects/"))
			Expect(apiErr.Body).To(ContainSubstring("name"))
		})

		It("should report bad credentials as 401", func() {
			bad, err := client.New(c.BaseURL(), models.User{Username: "admin", Password: "nope"})
			Expect(err).NotTo(HaveOccurred())

			_, err = bad.Me(ctx)
			Expect(srvErrors.StatusCode(err)).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("AsUser", func() {
		BeforeEach(func() {
			_, err := c.Create(ctx, "users", map[string]any{"username": "alice", "password": "pw"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should switch credentials for the scope only", func() {
			err := c.AsUser(models.User{Username: "alice", Password: "pw"}, func() error {
				me, err := c.Me(ctx)
				if err != nil {
					return err
				}
				Expect(me.Username).To(Equal("alice"))
				return nil
			})
			Expect(err).NotTo(HaveOccurred())

			me, err := c.Me(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(me.Username).To(Equal("admin"))
		})

		// Given a scope whose body fails
		// When AsUser returns
		// Then the error is surfaced and the previous user is back
		It("should restore the user when the scope fails", func() {
			boom := errors.New("boom")
			err := c.AsUser(models.User{Username: "alice", Password: "pw"}, func() error { return boom })

			Expect(err).To(MatchError(boom))
			Expect(c.User().Username).To(Equal("admin"))
		})

		It("should restore the user when the scope panics", func() {
			Expect(func() {
				_ = c.AsUser(models.User{Username: "alice", Password: "pw"}, func() error { panic("boom") })
			}).To(PanicWith("boom"))
			Expect(c.User().Username).To(Equal("admin"))
		})

		It("should authenticate with a personal token", func() {
			var token string
			Expect(c.AsUser(models.User{Username: "alice", Password: "pw"}, func() error {
				var err error
				token, err = c.CreateToken(ctx, "read")
				return err
			})).To(Succeed())

			Expect(c.AsUser(models.User{Username: "alice", Token: token}, func() error {
				me, err := c.Me(ctx)
				if err != nil {
					return err
				}
				Expect(me.Username).To(Equal("alice"))
				return nil
			})).To(Succeed())
		})
	})

	Describe("AsInstance", func() {
		It("should target another node for the scope only", func() {
			other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"version":"other","instances":[]}`))
			}))
			defer other.Close()

			Expect(c.AsInstance(other.URL, func() error {
				p, err := c.Ping(ctx)
				if err != nil {
					return err
				}
				Expect(p.Version).To(Equal("other"))
				return nil
			})).To(Succeed())

			p, err := c.Ping(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Version).NotTo(Equal("other"))
		})
	})

	Describe("resources", func() {
		It("should create, update, list and delete", func() {
			r, err := c.Create(ctx, "inventories", map[string]any{"name": "inv", "description": "d"})
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Type).To(Equal("inventory"))
			Expect(r.Fields).To(HaveKeyWithValue("description", "d"))

			r, err = c.Update(ctx, "inventories", r.ID, map[string]any{"description": "e"})
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Fields).To(HaveKeyWithValue("description", "e"))

			items, err := c.List(ctx, "inventories", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))

			Expect(c.Delete(ctx, "inventories", r.ID)).To(Succeed())
			_, err = c.Get(ctx, "inventories", r.ID)
			Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
		})

		It("should follow pagination", func() {
			for i := range 30 {
				_, err := c.Create(ctx, "hosts", map[string]any{"name": string(rune('A'+i)) + "-host"})
				Expect(err).NotTo(HaveOccurred())
			}
			items, err := c.List(ctx, "hosts", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(30))
		})
	})

	Describe("license", func() {
		It("should install, read and delete a license", func() {
			info, err := c.LicenseInfo(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(info).To(BeNil())

			l, err := license.Generate(license.WithDays(3))
			Expect(err).NotTo(HaveOccurred())
			info, err = c.InstallLicense(ctx, l)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Valid).To(BeTrue())
			Expect(info.LicenseKey).To(Equal(l.LicenseKey))

			Expect(c.DeleteLicense(ctx)).To(Succeed())
			info, err = c.LicenseInfo(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(info).To(BeNil())
		})
	})
})
