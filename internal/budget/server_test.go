package budget

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/santibernabebb-gif/presupuestos/internal/extraction"
)

type mockPDFRenderer struct {
	data []byte
	err  error
}

func (m *mockPDFRenderer) Render(ctx context.Context, document *BudgetDocument) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.data, nil
}

type mockDOCXRenderer struct {
	data []byte
	err  error
}

func (m *mockDOCXRenderer) Render(document *BudgetDocument) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.data, nil
}

func multipartBody(fieldValues map[string]string, pages ...extraction.Upload) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, value := range fieldValues {
		Expect(writer.WriteField(name, value)).To(Succeed())
	}
	for _, page := range pages {
		part, err := writer.CreateFormFile("pages", page.Filename)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(page.Data)
		Expect(err).NotTo(HaveOccurred())
	}
	Expect(writer.Close()).To(Succeed())
	return body, writer.FormDataContentType()
}

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		extractor   *mockExtractor
		service     *Service
		server      *Server
		auth        BasicAuth
		exporters   Exporters
		ghttpServer *ghttp.Server
		now         time.Time
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		service = NewServiceWithDeps(
			db,
			extractor,
			nil,
			&fixedIDGenerator{id: "test-id"},
			&fixedNumberGenerator{number: "SANTI-2026-042"},
			&fixedTimeSource{now: now},
		)
		server = NewServerWithMux(service, exporters, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	BeforeEach(func() {
		db = newMockDB()
		now = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
		extractor = &mockExtractor{
			sheet: &extraction.BudgetSheet{
				Client: "Maria Garcia",
				Date:   "12/03/2026",
				Lines: []extraction.SheetLine{
					{Description: "Pintar pared", Units: 10, UnitPrice: 5},
					{Description: "Preparar superficie"},
				},
			},
		}
		auth = BasicAuth{}
		exporters = Exporters{
			PDF:  &mockPDFRenderer{data: []byte("%PDF-1.4 test")},
			DOCX: &mockDOCXRenderer{data: []byte("PK docx test")},
		}
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleIndex", func() {
		It("serves the HTML interface", func() {
			resp, err := http.Get(ghttpServer.URL() + "/")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("Presupuestos"))
		})
	})

	Describe("handleListBudgets", func() {
		When("history entries exist", func() {
			BeforeEach(func() {
				db.entries["id-1"] = testEntry("id-1", now)
				setupServer()
			})

			It("returns the entries as JSON", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/budgets")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var entries []*HistoryEntry
				Expect(json.NewDecoder(resp.Body).Decode(&entries)).To(Succeed())
				Expect(entries).To(HaveLen(1))
				Expect(entries[0].Client).To(Equal("MARIA GARCIA"))
			})
		})

		When("history is empty", func() {
			It("returns an empty array", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/budgets")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(MatchJSON("[]"))
			})
		})
	})

	Describe("handleCreateBudget", func() {
		When("pages are uploaded", func() {
			It("returns the normalized document with status Created", func() {
				body, contentType := multipartBody(nil, jpegUpload("page.jpg"))
				resp, err := http.Post(ghttpServer.URL()+"/api/budgets", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var document BudgetDocument
				Expect(json.NewDecoder(resp.Body).Decode(&document)).To(Succeed())
				Expect(document.Client).To(Equal("MARIA GARCIA"))
				Expect(document.Lines).To(HaveLen(2))
				Expect(document.Lines[0].Description).To(Equal("PREPARAR SUPERFICIE"))
				Expect(document.Total).To(BeNumerically("~", 60.50, 0.001))
			})
		})

		When("no pages are uploaded", func() {
			It("returns bad request with the error kind", func() {
				body, contentType := multipartBody(map[string]string{"note": "empty"})
				resp, err := http.Post(ghttpServer.URL()+"/api/budgets", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("the quota is exhausted", func() {
			BeforeEach(func() {
				extractor.err = &extraction.Error{Kind: extraction.KindQuota, Message: "quota exhausted"}
				setupServer()
			})

			It("returns 429 with kind quota in the body", func() {
				body, contentType := multipartBody(nil, jpegUpload("page.jpg"))
				resp, err := http.Post(ghttpServer.URL()+"/api/budgets", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusTooManyRequests))

				var payload map[string]string
				Expect(json.NewDecoder(resp.Body).Decode(&payload)).To(Succeed())
				Expect(payload["kind"]).To(Equal("quota"))
				Expect(payload["error"]).To(ContainSubstring("quota exhausted"))
			})
		})

		When("the credentials lack access to the model", func() {
			BeforeEach(func() {
				extractor.err = &extraction.Error{Kind: extraction.KindEntitlement, Message: "requested entity was not found"}
				setupServer()
			})

			It("returns 403 with kind entitlement in the body", func() {
				body, contentType := multipartBody(nil, jpegUpload("page.jpg"))
				resp, err := http.Post(ghttpServer.URL()+"/api/budgets", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusForbidden))

				var payload map[string]string
				Expect(json.NewDecoder(resp.Body).Decode(&payload)).To(Succeed())
				Expect(payload["kind"]).To(Equal("entitlement"))
			})
		})

		When("the model returns unusable output", func() {
			BeforeEach(func() {
				extractor.err = &extraction.Error{Kind: extraction.KindMalformed, Message: "no JSON object in response"}
				setupServer()
			})

			It("returns 502 with kind malformed in the body", func() {
				body, contentType := multipartBody(nil, jpegUpload("page.jpg"))
				resp, err := http.Post(ghttpServer.URL()+"/api/budgets", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))

				var payload map[string]string
				Expect(json.NewDecoder(resp.Body).Decode(&payload)).To(Succeed())
				Expect(payload["kind"]).To(Equal("malformed"))
			})
		})
	})

	Describe("handleGetBudget", func() {
		When("the budget exists", func() {
			BeforeEach(func() {
				db.entries["id-1"] = testEntry("id-1", now)
				setupServer()
			})

			It("returns the frozen document", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/budgets/id-1")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var document BudgetDocument
				Expect(json.NewDecoder(resp.Body).Decode(&document)).To(Succeed())
				Expect(document.Number).To(Equal("SANTI-2026-001"))
			})
		})

		When("the budget does not exist", func() {
			It("returns not found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/budgets/missing")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("handleDeleteBudget", func() {
		When("the budget exists", func() {
			BeforeEach(func() {
				db.entries["id-1"] = testEntry("id-1", now)
				setupServer()
			})

			It("returns no content", func() {
				req, err := http.NewRequest(http.MethodDelete, ghttpServer.URL()+"/api/budgets/id-1", nil)
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
				Expect(db.entries).To(BeEmpty())
			})
		})

		When("the budget does not exist", func() {
			It("returns not found", func() {
				req, err := http.NewRequest(http.MethodDelete, ghttpServer.URL()+"/api/budgets/missing", nil)
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("handleDownloadPDF", func() {
		BeforeEach(func() {
			db.entries["id-1"] = testEntry("id-1", now)
			setupServer()
		})

		It("sends the rendered PDF as an attachment", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/budgets/id-1/pdf")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/pdf"))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("Presupuesto_SANTI-2026-001_MARIA_GARCIA.pdf"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(Equal([]byte("%PDF-1.4 test")))
		})

		When("rendering fails", func() {
			BeforeEach(func() {
				exporters.PDF = &mockPDFRenderer{err: errors.New("no browser")}
				setupServer()
			})

			It("returns internal server error", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/budgets/id-1/pdf")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			})
		})
	})

	Describe("handleDownloadDOCX", func() {
		BeforeEach(func() {
			db.entries["id-1"] = testEntry("id-1", now)
			setupServer()
		})

		It("sends the rendered document as an attachment", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/budgets/id-1/docx")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/vnd.openxmlformats-officedocument.wordprocessingml.document"))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("Presupuesto_SANTI-2026-001_MARIA_GARCIA.docx"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "eduardo", Password: "secret"}
			setupServer()
		})

		It("rejects requests without credentials", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/budgets")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("accepts requests with valid credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/budgets", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("eduardo:secret")))
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("rejects requests with wrong credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/budgets", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("eduardo:wrong")))
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})
})
