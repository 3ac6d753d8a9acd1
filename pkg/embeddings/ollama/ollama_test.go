package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ctxmem/pkg/embeddings/ollama"
	"github.com/papercomputeco/ctxmem/pkg/vector"
)

var _ = Describe("Embedder", func() {
	var (
		server *httptest.Server
		got    map[string]string
		status int
		reply  string
	)

	BeforeEach(func() {
		got = nil
		status = http.StatusOK
		reply = `{"embeddings":[[0.5,0.25]]}`

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/api/embed"))
			Expect(r.Method).To(Equal(http.MethodPost))
			Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())
			w.WriteHeader(status)
			_, _ = w.Write([]byte(reply))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("posts the model and input", func() {
		e := ollama.New(ollama.Config{BaseURL: server.URL + "/"})
		emb, err := e.Embed(context.Background(), "sqlite cache")
		Expect(err).NotTo(HaveOccurred())
		Expect(emb).To(Equal([]float32{0.5, 0.25}))
		Expect(got).To(Equal(map[string]string{"model": ollama.DefaultModel, "input": "sqlite cache"}))
	})

	It("wraps server errors", func() {
		status = http.StatusInternalServerError
		reply = "model not loaded"

		_, err := ollama.New(ollama.Config{BaseURL: server.URL, Model: "m"}).Embed(context.Background(), "x")
		Expect(err).To(MatchError(vector.ErrEmbedding))
		Expect(err.Error()).To(ContainSubstring("model not loaded"))
	})

	It("rejects empty responses", func() {
		reply = `{"embeddings":[]}`
		_, err := ollama.New(ollama.Config{BaseURL: server.URL}).Embed(context.Background(), "x")
		Expect(err).To(MatchError(vector.ErrEmbedding))
	})
})
