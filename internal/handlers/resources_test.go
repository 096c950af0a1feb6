package handlers_test

import (
	"fmt"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v2 "github.com/tower-qa/tower-qa/api/v2"
	"github.com/tower-qa/tower-qa/internal/config"
)

var _ = Describe("Resource Handlers", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture(config.Server{JobDuration: 10 * time.Millisecond, CPUCapacity: 2, MemCapacity: 2})
	})

	AfterEach(func() {
		f.close()
	})

	Describe("CreateResource", func() {
		It("should create an object and echo its fields", func() {
			var out map[string]any
			w := f.do(http.MethodPost, "/projects/", map[string]any{"name": "demo", "scm_type": "git"}, &out)

			Expect(w.Code).To(Equal(http.StatusCreated))
			Expect(out["id"]).To(BeEquivalentTo(1))
			Expect(out["name"]).To(Equal("demo"))
			Expect(out["type"]).To(Equal("project"))
			Expect(out["url"]).To(Equal("/api/v2/projects/1/"))
			Expect(out["scm_type"]).To(Equal("git"))
			Expect(out["related"]).To(HaveKeyWithValue("update", "/api/v2/projects/1/update/"))
		})

		It("should reject a missing name with a field error", func() {
			var out map[string][]string
			w := f.do(http.MethodPost, "/projects/", map[string]any{"scm_type": "git"}, nil)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decode(w, &out)).To(Succeed())
			Expect(out).To(HaveKey("name"))
		})

		It("should reject a duplicate name", func() {
			f.do(http.MethodPost, "/inventories/", map[string]any{"name": "inv"}, nil)
			w := f.do(http.MethodPost, "/inventories/", map[string]any{"name": "inv"}, nil)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("should never echo a user's password", func() {
			var out map[string]any
			w := f.do(http.MethodPost, "/users/", map[string]any{"username": "bob", "password": "s3cret"}, &out)

			Expect(w.Code).To(Equal(http.StatusCreated))
			Expect(out["username"]).To(Equal("bob"))
			Expect(out).NotTo(HaveKey("password"))
		})
	})

	Describe("ListResources", func() {
		// Given 30 hosts
		// When listing with the default page size
		// Then the first page holds 25 and links to the next
		It("should paginate", func() {
			for i := range 30 {
				f.do(http.MethodPost, "/hosts/", map[string]any{"name": fmt.Sprintf("host-%02d", i)}, nil)
			}

			var page v2.Page[map[string]any]
			w := f.do(http.MethodGet, "/hosts/", nil, &page)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(page.Count).To(Equal(30))
			Expect(page.Results).To(HaveLen(25))
			Expect(page.Next).NotTo(BeNil())
			Expect(*page.Next).To(Equal("/api/v2/hosts/?page=2&page_size=25"))
			Expect(page.Previous).To(BeNil())

			w = f.do(http.MethodGet, "/hosts/?page=2", nil, &page)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(page.Results).To(HaveLen(5))
			Expect(page.Next).To(BeNil())
			Expect(page.Previous).NotTo(BeNil())
		})

		It("should answer 404 past the last page", func() {
			w := f.do(http.MethodGet, "/hosts/?page=3", nil, nil)
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("should filter by name", func() {
			f.do(http.MethodPost, "/teams/", map[string]any{"name": "a"}, nil)
			f.do(http.MethodPost, "/teams/", map[string]any{"name": "b"}, nil)

			var page v2.Page[map[string]any]
			f.do(http.MethodGet, "/teams/?name=b", nil, &page)
			Expect(page.Count).To(Equal(1))
			Expect(page.Results[0]["name"]).To(Equal("b"))
		})

		It("should list the seeded system job templates", func() {
			var page v2.Page[map[string]any]
			f.do(http.MethodGet, "/system_job_templates/", nil, &page)
			Expect(page.Count).To(Equal(2))
		})
	})

	Describe("Get, Update and Delete", func() {
		It("should round trip an object through its detail endpoint", func() {
			f.do(http.MethodPost, "/credentials/", map[string]any{"name": "c"}, nil)

			var out map[string]any
			w := f.do(http.MethodPatch, "/credentials/1/", map[string]any{"description": "updated"}, &out)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(out["description"]).To(Equal("updated"))

			w = f.do(http.MethodGet, "/credentials/1/", nil, &out)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(out["description"]).To(Equal("updated"))

			w = f.do(http.MethodDelete, "/credentials/1/", nil, nil)
			Expect(w.Code).To(Equal(http.StatusNoContent))

			w = f.do(http.MethodGet, "/credentials/1/", nil, nil)
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("should answer 404 on a malformed id", func() {
			w := f.do(http.MethodGet, "/credentials/abc/", nil, nil)
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("Associate", func() {
		It("should attach a notification template to a job template event", func() {
			f.do(http.MethodPost, "/job_templates/", map[string]any{"name": "jt"}, nil)
			f.do(http.MethodPost, "/notification_templates/", map[string]any{"name": "hook", "notification_type": "webhook"}, nil)

			w := f.do(http.MethodPost, "/job_templates/1/notification_templates_success/", map[string]any{"id": 1}, nil)
			Expect(w.Code).To(Equal(http.StatusNoContent))

			var out map[string]any
			f.do(http.MethodGet, "/job_templates/1/", nil, &out)
			Expect(out["notification_templates_success"]).To(ConsistOf(BeEquivalentTo(1)))

			w = f.do(http.MethodPost, "/job_templates/1/notification_templates_success/", map[string]any{"id": 1, "disassociate": true}, nil)
			Expect(w.Code).To(Equal(http.StatusNoContent))
			f.do(http.MethodGet, "/job_templates/1/", nil, &out)
			Expect(out["notification_templates_success"]).To(BeEmpty())
		})

		It("should answer 404 for an unknown notification template", func() {
			f.do(http.MethodPost, "/job_templates/", map[string]any{"name": "jt"}, nil)
			w := f.do(http.MethodPost, "/job_templates/1/notification_templates_error/", map[string]any{"id": 9}, nil)
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})
})
