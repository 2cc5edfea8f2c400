package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/meridianlabs/mnemo/pkg/extract"
	"github.com/meridianlabs/mnemo/pkg/memory"
	"github.com/meridianlabs/mnemo/pkg/memory/distill"
	"github.com/meridianlabs/mnemo/pkg/memory/promote"
	"github.com/meridianlabs/mnemo/pkg/session"
	testutils "github.com/meridianlabs/mnemo/pkg/utils/test"
)

func decodeBody(resp *http.Response, out any) {
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	Expect(json.Unmarshal(body, out)).To(Succeed())
}

var _ = Describe("Server", func() {
	var (
		server       *Server
		sessions     *session.Store
		episodicColl *testutils.MockCollection
		semanticColl *testutils.MockCollection
		episodic     *memory.Tier
		semantic     *memory.Tier
		extractor    *testutils.MockExtractor
	)

	BeforeEach(func() {
		sessions = session.NewStore(session.Config{})
		episodicColl = testutils.NewMockCollection()
		semanticColl = testutils.NewMockCollection()
		episodic = memory.NewTier(episodicColl, "episodic", nil)
		semantic = memory.NewTier(semanticColl, "semantic", nil)
		extractor = testutils.NewMockExtractor()

		distiller, err := distill.NewPipeline(distill.Config{
			Sessions:  sessions,
			Episodic:  episodic,
			Extractor: extractor,
		})
		Expect(err).NotTo(HaveOccurred())

		promoter, err := promote.NewPipeline(promote.Config{
			Episodic:          episodic,
			Semantic:          semantic,
			SalienceThreshold: 0.7,
		})
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(Config{
			ListenAddr: ":0",
			Sessions:   sessions,
			Distiller:  distiller,
			Promoter:   promoter,
			Episodic:   episodic,
			Semantic:   semantic,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a session store", func() {
		_, err := NewServer(Config{ListenAddr: ":0"})
		Expect(err).To(HaveOccurred())
	})

	Describe("GET /ping", func() {
		It("responds with pong", func() {
			resp, err := server.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("POST /chat/:session/turns", func() {
		postTurn := func(sessionID, user, assistant string) AppendTurnResponse {
			body, err := json.Marshal(AppendTurnRequest{
				UserMessage:      user,
				AssistantMessage: assistant,
			})
			Expect(err).NotTo(HaveOccurred())

			req := httptest.NewRequest(http.MethodPost, "/chat/"+sessionID+"/turns", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := server.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out AppendTurnResponse
			decodeBody(resp, &out)
			return out
		}

		It("appends turns and auto-creates the session", func() {
			out := postTurn("sess-1", "hello", "hi")
			Expect(out.SessionID).To(Equal("sess-1"))
			Expect(out.TurnCount).To(Equal(1))
			Expect(out.DistillationQueued).To(BeFalse())

			turns := sessions.RecentTurns("sess-1", 0)
			Expect(turns).To(HaveLen(1))
			Expect(turns[0].UserMessage).To(Equal("hello"))
		})

		It("rejects empty turns", func() {
			req := httptest.NewRequest(http.MethodPost, "/chat/sess-1/turns", bytes.NewReader([]byte(`{}`)))
			req.Header.Set("Content-Type", "application/json")

			resp, err := server.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("flags the distillation trigger on the interval", func() {
			trigServer, err := NewServer(Config{
				ListenAddr:         ":0",
				Sessions:           sessions,
				Distiller:          mustDistiller(sessions, episodic, extractor),
				DistillEveryNTurns: 2,
			})
			Expect(err).NotTo(HaveOccurred())
			server = trigServer

			first := postTurn("sess-1", "one", "ack")
			second := postTurn("sess-1", "two", "ack")
			Expect(first.DistillationQueued).To(BeFalse())
			Expect(second.DistillationQueued).To(BeTrue())
		})
	})

	Describe("GET /chat/:session/turns", func() {
		It("returns recent turns", func() {
			sessions.AppendTurn("sess-1", "a", "b", nil)
			sessions.AppendTurn("sess-1", "c", "d", nil)

			resp, err := server.Test(httptest.NewRequest(http.MethodGet, "/chat/sess-1/turns?n=1", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out struct {
				Count int            `json:"count"`
				Turns []session.Turn `json:"turns"`
			}
			decodeBody(resp, &out)
			Expect(out.Count).To(Equal(1))
			Expect(out.Turns[0].UserMessage).To(Equal("c"))
		})

		It("rejects a non-numeric n", func() {
			resp, err := server.Test(httptest.NewRequest(http.MethodGet, "/chat/sess-1/turns?n=x", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("DELETE /chat/:session", func() {
		It("deletes an existing session", func() {
			sessions.AppendTurn("sess-1", "a", "b", nil)

			resp, err := server.Test(httptest.NewRequest(http.MethodDelete, "/chat/sess-1", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			_, ok := sessions.Get("sess-1")
			Expect(ok).To(BeFalse())
		})

		It("404s for an unknown session", func() {
			resp, err := server.Test(httptest.NewRequest(http.MethodDelete, "/chat/missing", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("POST /memory/distill/:session", func() {
		It("runs the pipeline and returns the funnel", func() {
			sessions.AppendTurn("sess-1", "q", "a", nil)
			extractor.Summary = "s"
			extractor.Candidates = []extract.Candidate{{Text: "fact", Salience: 0.5}}

			resp, err := server.Test(httptest.NewRequest(http.MethodPost, "/memory/distill/sess-1", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out distill.Result
			decodeBody(resp, &out)
			Expect(out.Status).To(Equal(distill.StatusSuccess))
			Expect(out.FactsStored).To(Equal(1))
		})

		It("returns no_facts for an unknown session", func() {
			resp, err := server.Test(httptest.NewRequest(http.MethodPost, "/memory/distill/missing", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out distill.Result
			decodeBody(resp, &out)
			Expect(out.Status).To(Equal(distill.StatusNoFacts))
		})
	})

	Describe("POST /memory/promote", func() {
		It("runs a sweep and returns the funnel", func() {
			resp, err := server.Test(httptest.NewRequest(http.MethodPost, "/memory/promote", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out promote.Result
			decodeBody(resp, &out)
			Expect(out.Status).To(Equal(promote.StatusNoFacts))
		})
	})

	Describe("GET /memory/search", func() {
		BeforeEach(func() {
			Expect(semantic.Add(context.Background(), memory.Fact{
				ID:       memory.NewFactID(),
				Text:     "Acme Corp is based in Berlin.",
				Metadata: memory.Metadata{Salience: 0.9, Verified: true},
			})).To(Succeed())
		})

		It("requires a query", func() {
			resp, err := server.Test(httptest.NewRequest(http.MethodGet, "/memory/search", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects an unknown tier", func() {
			resp, err := server.Test(httptest.NewRequest(http.MethodGet, "/memory/search?query=x&tier=working", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("searches the semantic tier by default", func() {
			resp, err := server.Test(httptest.NewRequest(http.MethodGet,
				"/memory/search?query=Acme+Corp+is+based+in+Berlin.", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out SearchResponse
			decodeBody(resp, &out)
			Expect(out.Tier).To(Equal("semantic"))
			Expect(out.Count).To(Equal(1))
			Expect(out.Results[0].Fact.Text).To(Equal("Acme Corp is based in Berlin."))
		})

		It("searches the episodic tier when asked", func() {
			resp, err := server.Test(httptest.NewRequest(http.MethodGet,
				"/memory/search?query=anything&tier=episodic", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out SearchResponse
			decodeBody(resp, &out)
			Expect(out.Tier).To(Equal("episodic"))
			Expect(out.Count).To(BeZero())
		})
	})

	Describe("GET /sessions/stats", func() {
		It("returns occupancy", func() {
			sessions.AppendTurn("sess-1", "a", "b", nil)

			resp, err := server.Test(httptest.NewRequest(http.MethodGet, "/sessions/stats", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out session.Stats
			decodeBody(resp, &out)
			Expect(out.Total).To(Equal(1))
		})
	})
})

func mustDistiller(sessions *session.Store, episodic *memory.Tier, extractor *testutils.MockExtractor) *distill.Pipeline {
	p, err := distill.NewPipeline(distill.Config{
		Sessions:  sessions,
		Episodic:  episodic,
		Extractor: extractor,
	})
	Expect(err).NotTo(HaveOccurred())
	return p
}
