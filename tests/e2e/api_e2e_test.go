package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/packflow/internal/db"
	"github.com/packflow/internal/handler"
	"github.com/packflow/internal/platform"
	"github.com/packflow/internal/router"
	"github.com/packflow/internal/service"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type e2eSuite struct {
	handler http.Handler
	client  *localClient
	baseURL string
	briefID uint
	packID  uint
}

type localClient struct {
	handler http.Handler
	jar     http.CookieJar
}

func newLocalClient(handler http.Handler) *localClient {
	jar, _ := cookiejar.New(nil)
	return &localClient{handler: handler, jar: jar}
}

func (c *localClient) Do(req *http.Request) (*http.Response, error) {
	if c.jar != nil {
		for _, cookie := range c.jar.Cookies(req.URL) {
			req.AddCookie(cookie)
		}
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	resp := w.Result()
	if c.jar != nil {
		c.jar.SetCookies(req.URL, resp.Cookies())
	}
	return resp, nil
}

// fakeE2EComposer 以固定模板代替远端 AI 起草
type fakeE2EComposer struct{}

func (fakeE2EComposer) ComposeDraft(_ context.Context, brief db.Brief, _ service.DraftOptions) (string, error) {
	return fmt.Sprintf("# %s\n\n面向%s的演示草稿正文。", brief.Topic, brief.Audience), nil
}

// fakeE2EGenerator 按类型返回可区分的衍生稿内容
type fakeE2EGenerator struct {
	mu    sync.Mutex
	calls int
}

func (g *fakeE2EGenerator) content(kind string) string {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()

	if kind == db.KindTwitterThread {
		return fmt.Sprintf("第一条推文 v%d\n第二条推文 v%d", n, n)
	}
	if kind == db.KindEmail {
		return fmt.Sprintf("Subject: 演示邮件主题 v%d\n这是邮件正文。", n)
	}
	return fmt.Sprintf("%s 内容 v%d", kind, n)
}

func (g *fakeE2EGenerator) GenerateDerivative(_ context.Context, input service.DerivativeInput) (service.DerivativeResult, error) {
	return service.DerivativeResult{Content: g.content(input.Kind)}, nil
}

func (g *fakeE2EGenerator) StreamDerivative(_ context.Context, input service.DerivativeInput) (<-chan service.StreamChunk, error) {
	out := make(chan service.StreamChunk, 4)
	go func() {
		defer close(out)
		for _, piece := range []string{"流式", "生成", g.content(input.Kind)} {
			out <- service.StreamChunk{Delta: piece}
		}
		out <- service.StreamChunk{Done: true}
	}()
	return out, nil
}

// fakeE2EPublisher 记录收到的载荷并立即返回外部引用
type fakeE2EPublisher struct {
	kind     string
	mu       sync.Mutex
	payloads []platform.Payload
}

func (p *fakeE2EPublisher) Kind() string { return p.kind }

func (p *fakeE2EPublisher) Publish(_ context.Context, payload platform.Payload) (string, error) {
	p.mu.Lock()
	p.payloads = append(p.payloads, payload)
	p.mu.Unlock()
	return fmt.Sprintf("%s-ext-1", p.kind), nil
}

func newE2ESuite(t *testing.T) *e2eSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:e2e-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := gdb.AutoMigrate(
		&db.Brief{},
		&db.ContentPack{},
		&db.DerivativeVersion{},
		&db.PublishRecord{},
		&db.SystemSetting{},
	); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	db.DB = gdb

	publishers := map[string]platform.Publisher{
		platform.KindMailchimp: &fakeE2EPublisher{kind: platform.KindMailchimp},
		platform.KindWordPress: &fakeE2EPublisher{kind: platform.KindWordPress},
	}

	api := handler.NewAPI(gdb, publishers)
	api.SetDraftComposer(fakeE2EComposer{})
	derivatives := service.NewDerivativeService(gdb, &fakeE2EGenerator{})
	api.SetDerivativeService(derivatives)

	publishes := service.NewPublishService(gdb, derivatives, publishers)
	publishes.SetBackoff(func(int) time.Duration { return 0 })
	api.SetPublishService(publishes)

	engine := router.SetupRouter(api, "e2e-session-secret")

	return &e2eSuite{
		handler: engine,
		client:  newLocalClient(engine),
		baseURL: "http://packflow.test",
	}
}

func (s *e2eSuite) request(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, s.baseURL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return resp, data
}

func (s *e2eSuite) requestJSON(t *testing.T, method, path string, body interface{}, wantStatus int) map[string]interface{} {
	t.Helper()

	resp, data := s.request(t, method, path, body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected status %d, got %d (body: %s)", method, path, wantStatus, resp.StatusCode, data)
	}

	var parsed map[string]interface{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatalf("%s %s: invalid JSON response: %v (body: %s)", method, path, err, data)
		}
	}
	return parsed
}

func TestE2E_PackLifecycle(t *testing.T) {
	suite := newE2ESuite(t)

	t.Run("brief and pack creation", suite.testBriefAndPackCreation)
	t.Run("draft editing", suite.testDraftEditing)
	t.Run("derivative generation", suite.testDerivativeGeneration)
	t.Run("streaming regeneration", suite.testStreamingRegeneration)
	t.Run("version rollback", suite.testVersionRollback)
	t.Run("export", suite.testExport)
	t.Run("status workflow and publish", suite.testStatusWorkflowAndPublish)
	t.Run("deletion", suite.testDeletion)
}

func (s *e2eSuite) testBriefAndPackCreation(t *testing.T) {
	created := s.requestJSON(t, http.MethodPost, "/api/briefs", gin.H{
		"topic":    "Go 服务的优雅退出",
		"audience": "后端工程师",
		"keywords": "graceful shutdown, context",
		"style":    "技术教程",
	}, http.StatusCreated)

	brief := created["brief"].(map[string]interface{})
	s.briefID = uint(brief["ID"].(float64))
	if s.briefID == 0 {
		t.Fatalf("expected brief id to be assigned")
	}

	packResp := s.requestJSON(t, http.MethodPost, fmt.Sprintf("/api/packs/from-brief/%d", s.briefID), gin.H{
		"wordCount": 800,
		"style":     "技术教程",
	}, http.StatusCreated)

	pack := packResp["pack"].(map[string]interface{})
	s.packID = uint(pack["ID"].(float64))
	if got := pack["Status"].(string); got != db.PackStatusDraft {
		t.Fatalf("expected new pack in draft status, got %q", got)
	}

	// 同一简报不允许创建第二个内容包
	resp, _ := s.request(t, http.MethodPost, fmt.Sprintf("/api/packs/from-brief/%d", s.briefID), gin.H{})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate pack, got %d", resp.StatusCode)
	}

	listResp := s.requestJSON(t, http.MethodGet, "/api/packs?status=draft", nil, http.StatusOK)
	if total := listResp["total"].(float64); total != 1 {
		t.Fatalf("expected 1 draft pack in listing, got %v", total)
	}
}

func (s *e2eSuite) testDraftEditing(t *testing.T) {
	updated := s.requestJSON(t, http.MethodPut, fmt.Sprintf("/api/packs/%d", s.packID), gin.H{
		"draft_content": "# 改写后的标题\n\n这是人工改写后的草稿正文，内容更完整。",
	}, http.StatusOK)

	pack := updated["pack"].(map[string]interface{})
	if wc := pack["WordCount"].(float64); wc <= 0 {
		t.Fatalf("expected recomputed word count, got %v", wc)
	}

	versions := s.requestJSON(t, http.MethodGet,
		fmt.Sprintf("/api/packs/%d/derivatives/versions?type=%s", s.packID, db.KindDraft), nil, http.StatusOK)
	if got := len(versions["versions"].([]interface{})); got != 2 {
		t.Fatalf("expected 2 draft versions after edit, got %d", got)
	}
}

func (s *e2eSuite) testDerivativeGeneration(t *testing.T) {
	// 生成前读取应返回 404
	resp, _ := s.request(t, http.MethodGet, fmt.Sprintf("/api/packs/%d/derivatives", s.packID), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before generation, got %d", resp.StatusCode)
	}

	generated := s.requestJSON(t, http.MethodPost, "/api/packs/derivatives", gin.H{
		"pack_id": s.packID,
	}, http.StatusOK)

	set := generated["derivatives"].(map[string]interface{})
	thread := set["twitter_thread"].([]interface{})
	if len(thread) != 2 {
		t.Fatalf("expected 2 tweets in thread, got %d", len(thread))
	}
	for _, key := range []string{"linkedin", "email", "blog_summary", "seo_description"} {
		if text := set[key].(string); text == "" {
			t.Fatalf("expected non-empty %s derivative", key)
		}
	}

	fetched := s.requestJSON(t, http.MethodGet, fmt.Sprintf("/api/packs/%d/derivatives", s.packID), nil, http.StatusOK)
	if _, ok := fetched["derivatives"].(map[string]interface{}); !ok {
		t.Fatalf("expected derivative set in response")
	}
}

func (s *e2eSuite) testStreamingRegeneration(t *testing.T) {
	resp, data := s.request(t, http.MethodPost,
		fmt.Sprintf("/api/packs/%d/derivatives/stream", s.packID),
		gin.H{"type": db.KindLinkedIn})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for stream, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("expected event-stream content type, got %q", ct)
	}

	body := string(data)
	if !strings.Contains(body, "event: done") {
		t.Fatalf("expected done sentinel event in stream, got: %s", body)
	}
	if !strings.Contains(body, "version_number") {
		t.Fatalf("expected final version info in done event, got: %s", body)
	}

	versions := s.requestJSON(t, http.MethodGet,
		fmt.Sprintf("/api/packs/%d/derivatives/versions?type=%s", s.packID, db.KindLinkedIn), nil, http.StatusOK)
	if got := len(versions["versions"].([]interface{})); got != 2 {
		t.Fatalf("expected 2 linkedin versions after streamed regeneration, got %d", got)
	}
}

func (s *e2eSuite) testVersionRollback(t *testing.T) {
	s.requestJSON(t, http.MethodPost, fmt.Sprintf("/api/packs/%d/derivatives/regenerate", s.packID), gin.H{
		"type": db.KindSEODescription,
	}, http.StatusOK)

	activated := s.requestJSON(t, http.MethodPost, fmt.Sprintf("/api/packs/%d/derivatives/activate", s.packID), gin.H{
		"kind":           db.KindSEODescription,
		"version_number": 1,
	}, http.StatusOK)

	version := activated["version"].(map[string]interface{})
	if n := version["VersionNumber"].(float64); n != 1 {
		t.Fatalf("expected version 1 to be active, got %v", n)
	}

	// 回滚不存在的版本
	resp, _ := s.request(t, http.MethodPost, fmt.Sprintf("/api/packs/%d/derivatives/activate", s.packID), gin.H{
		"kind":           db.KindSEODescription,
		"version_number": 99,
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing version, got %d", resp.StatusCode)
	}
}

func (s *e2eSuite) testExport(t *testing.T) {
	for _, format := range []string{"json", "markdown", "html"} {
		resp, data := s.request(t, http.MethodGet,
			fmt.Sprintf("/api/packs/%d/derivatives/export?format=%s", s.packID, format), nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 for %s export, got %d", format, resp.StatusCode)
		}
		if len(data) == 0 {
			t.Fatalf("expected non-empty %s export", format)
		}
		if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
			t.Fatalf("expected attachment disposition for %s export, got %q", format, cd)
		}
	}

	resp, _ := s.request(t, http.MethodGet,
		fmt.Sprintf("/api/packs/%d/derivatives/export?format=pdf", s.packID), nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported format, got %d", resp.StatusCode)
	}
}

func (s *e2eSuite) testStatusWorkflowAndPublish(t *testing.T) {
	// 非法跳转：draft 不能直接 published
	resp, _ := s.request(t, http.MethodPost, "/api/packs/update-status", gin.H{
		"pack_id": s.packID,
		"status":  db.PackStatusPublished,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for illegal transition, got %d", resp.StatusCode)
	}

	for _, status := range []string{db.PackStatusReview, db.PackStatusApproved} {
		s.requestJSON(t, http.MethodPost, "/api/packs/update-status", gin.H{
			"pack_id": s.packID,
			"status":  status,
		}, http.StatusOK)
	}

	published := s.requestJSON(t, http.MethodPost, fmt.Sprintf("/api/packs/%d/publish", s.packID), gin.H{
		"platforms": []string{platform.KindMailchimp, platform.KindWordPress},
	}, http.StatusOK)

	results := published["results"].(map[string]interface{})
	for _, name := range []string{platform.KindMailchimp, platform.KindWordPress} {
		record := results[name].(map[string]interface{})
		if outcome := record["Outcome"].(string); outcome != db.PublishOutcomeSuccess {
			t.Fatalf("expected %s publish success, got %q", name, outcome)
		}
		if ref := record["ExternalRef"].(string); ref == "" {
			t.Fatalf("expected external reference for %s", name)
		}
	}

	records := s.requestJSON(t, http.MethodGet,
		fmt.Sprintf("/api/packs/%d/publish-records", s.packID), nil, http.StatusOK)
	if got := len(records["records"].([]interface{})); got != 2 {
		t.Fatalf("expected 2 publish records, got %d", got)
	}

	s.requestJSON(t, http.MethodPost, "/api/packs/update-status", gin.H{
		"pack_id": s.packID,
		"status":  db.PackStatusPublished,
	}, http.StatusOK)
}

func (s *e2eSuite) testDeletion(t *testing.T) {
	s.requestJSON(t, http.MethodDelete, fmt.Sprintf("/api/packs/%d", s.packID), nil, http.StatusOK)

	resp, _ := s.request(t, http.MethodGet, fmt.Sprintf("/api/packs/%d", s.packID), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after deletion, got %d", resp.StatusCode)
	}

	var versionCount, recordCount int64
	db.DB.Model(&db.DerivativeVersion{}).Where("pack_id = ?", s.packID).Count(&versionCount)
	db.DB.Model(&db.PublishRecord{}).Where("pack_id = ?", s.packID).Count(&recordCount)
	if versionCount != 0 || recordCount != 0 {
		t.Fatalf("expected cascade delete, got %d versions and %d records", versionCount, recordCount)
	}
}
