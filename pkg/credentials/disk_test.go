package credentials_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tower-qa/tower-qa/internal/models"
	"github.com/tower-qa/tower-qa/pkg/credentials"
)

var _ = Describe("DiskStore", func() {
	var (
		tmpDir string
		store  *credentials.DiskStore
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		store = credentials.NewDiskStore(tmpDir)
	})

	Describe("Save and Load", func() {
		It("should save and load credentials", func() {
			creds := models.Credentials{
				Host:     "https://tower.example.com",
				Username: "admin",
				Token:    "abc123",
			}

			Expect(store.Save(creds)).To(Succeed())
			Expect(store.Exists(creds.Host)).To(BeTrue())

			loaded, err := store.Load(creds.Host)
			Expect(err).NotTo(HaveOccurred())
			Expect(*loaded).To(Equal(creds))
		})

		It("should overwrite credentials of the same host", func() {
			Expect(store.Save(models.Credentials{Host: "https://tower", Username: "a", Token: "1"})).To(Succeed())
			Expect(store.Save(models.Credentials{Host: "https://tower", Username: "b", Token: "2"})).To(Succeed())

			loaded, err := store.Load("https://tower")
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Username).To(Equal("b"))
			Expect(loaded.Token).To(Equal("2"))
		})

		// Given credentials for two controllers
		// When one is loaded
		// Then the other is left untouched
		It("should keep one entry per host", func() {
			Expect(store.Save(models.Credentials{Host: "https://a", Token: "1"})).To(Succeed())
			Expect(store.Save(models.Credentials{Host: "https://b", Token: "2"})).To(Succeed())

			a, err := store.Load("https://a")
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Token).To(Equal("1"))

			b, err := store.Load("https://b")
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Token).To(Equal("2"))
		})

		It("should ignore case and trailing slashes in the host", func() {
			Expect(store.Save(models.Credentials{Host: "https://Tower.example.com/", Token: "1"})).To(Succeed())
			Expect(store.Exists("https://tower.example.com")).To(BeTrue())
		})
	})

	Describe("Load", func() {
		It("should return ErrNotFound when no credentials exist", func() {
			_, err := store.Load("https://tower")
			Expect(err).To(MatchError(credentials.ErrNotFound))
		})

		It("should return ErrNotFound for an unknown host", func() {
			Expect(store.Save(models.Credentials{Host: "https://a", Token: "1"})).To(Succeed())
			_, err := store.Load("https://b")
			Expect(err).To(MatchError(credentials.ErrNotFound))
		})
	})

	Describe("Delete", func() {
		It("should delete existing credentials", func() {
			Expect(store.Save(models.Credentials{Host: "https://a", Token: "1"})).To(Succeed())
			Expect(store.Save(models.Credentials{Host: "https://b", Token: "2"})).To(Succeed())

			Expect(store.Delete("https://a")).To(Succeed())
			Expect(store.Exists("https://a")).To(BeFalse())
			Expect(store.Exists("https://b")).To(BeTrue())
		})

		It("should remove the file with the last entry", func() {
			Expect(store.Save(models.Credentials{Host: "https://a", Token: "1"})).To(Succeed())
			Expect(store.Delete("https://a")).To(Succeed())

			_, err := os.Stat(filepath.Join(tmpDir, "credentials.json"))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("should not error when deleting non-existent credentials", func() {
			Expect(store.Delete("https://a")).To(Succeed())
		})
	})

	Describe("File permissions", func() {
		It("should create file with restrictive permissions", func() {
			Expect(store.Save(models.Credentials{Host: "https://a", Token: "secret"})).To(Succeed())

			info, err := os.Stat(filepath.Join(tmpDir, "credentials.json"))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0600)))
		})

		It("should leave only the credentials file behind", func() {
			Expect(store.Save(models.Credentials{Host: "https://a", Token: "1"})).To(Succeed())
			Expect(store.Save(models.Credentials{Host: "https://b", Token: "2"})).To(Succeed())

			entries, err := os.ReadDir(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Name()).To(Equal("credentials.json"))
		})

		// Given a credentials file that is not JSON
		// When it is loaded
		// Then the decoding error names the file
		It("should report a corrupt file", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "credentials.json"), []byte("not json"), 0o600)).To(Succeed())

			_, err := store.Load("https://a")
			Expect(err).To(MatchError(ContainSubstring("credentials.json")))
		})
	})

	Describe("Data folder creation", func() {
		It("should create nested directories if they don't exist", func() {
			nestedDir := filepath.Join(tmpDir, "nested", "data", "folder")
			nestedStore := credentials.NewDiskStore(nestedDir)

			Expect(nestedStore.Save(models.Credentials{Host: "https://a", Token: "1"})).To(Succeed())

			_, err := os.Stat(nestedDir)
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
