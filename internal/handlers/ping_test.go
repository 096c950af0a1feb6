package handlers_test

import (
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v2 "github.com/tower-qa/tower-qa/api/v2"
	"github.com/tower-qa/tower-qa/internal/config"
)

var _ = Describe("Ping and Authentication Handlers", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture(config.Server{CPUCapacity: 3, MemCapacity: 1})
	})

	AfterEach(func() {
		f.close()
	})

	send := func(req *http.Request) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		return w
	}

	It("should answer ping without credentials", func() {
		w := send(httptest.NewRequest(http.MethodGet, "/api/v2/ping/", nil))

		Expect(w.Code).To(Equal(http.StatusOK))
		var ping v2.Ping
		Expect(decode(w, &ping)).To(Succeed())
		Expect(ping.Version).To(Equal("test"))
		Expect(ping.Instances).To(HaveLen(1))
		Expect(ping.Instances[0].Capacity).To(Equal(3))
	})

	It("should reject anonymous requests", func() {
		w := send(httptest.NewRequest(http.MethodGet, "/api/v2/me/", nil))
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})

	It("should reject a wrong password", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v2/me/", nil)
		req.SetBasicAuth("admin", "wrong")
		Expect(send(req).Code).To(Equal(http.StatusUnauthorized))
	})

	It("should return the current user", func() {
		var page v2.Page[v2.User]
		w := f.do(http.MethodGet, "/me/", nil, &page)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(page.Results).To(HaveLen(1))
		Expect(page.Results[0].Username).To(Equal("admin"))
		Expect(page.Results[0].IsSuperuser).To(BeTrue())
	})

	// Given a personal token issued to a new user
	// When the token is presented as a bearer credential
	// Then /me/ reports that user
	It("should authenticate with an issued token", func() {
		// Arrange
		f.do(http.MethodPost, "/users/", map[string]any{"username": "alice", "password": "pw"}, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/v2/users/2/personal_tokens/", nil)
		req.SetBasicAuth("alice", "pw")
		w := send(req)
		Expect(w.Code).To(Equal(http.StatusCreated))
		var token v2.Token
		Expect(decode(w, &token)).To(Succeed())
		Expect(token.Scope).To(Equal("write"))
		Expect(token.Expires).NotTo(BeEmpty())

		// Act
		req = httptest.NewRequest(http.MethodGet, "/api/v2/me/", nil)
		req.Header.Set("Authorization", "Bearer "+token.Token)
		w = send(req)

		// Assert
		Expect(w.Code).To(Equal(http.StatusOK))
		var page v2.Page[v2.User]
		Expect(decode(w, &page)).To(Succeed())
		Expect(page.Results[0].Username).To(Equal("alice"))
		Expect(page.Results[0].IsSuperuser).To(BeFalse())
	})

	It("should reject a forged token", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v2/me/", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		Expect(send(req).Code).To(Equal(http.StatusUnauthorized))
	})

	It("should reject an unknown token scope", func() {
		w := f.do(http.MethodPost, "/tokens/", map[string]any{"scope": "admin"}, nil)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})
