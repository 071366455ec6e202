package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"TasteClient/internal/api"
	"TasteClient/internal/domain"
	"TasteClient/internal/infrastructure/storage"
	"TasteClient/internal/infrastructure/transport"
	"TasteClient/internal/ports"
	"TasteClient/internal/session"
	"TasteClient/internal/testserver"
)

type fixture struct {
	srv       *testserver.Server
	persister *storage.MemoryTokenStore
	store     *session.Store
	transport *transport.Client
	client    *api.Client
	expired   atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{srv: testserver.New(t), persister: storage.NewMemoryTokenStore()}
	f.store = session.NewStore(f.persister, "", nil)

	tc, err := transport.New(transport.Options{BaseURL: f.srv.URL}, f.store, nil)
	if err != nil {
		t.Fatalf("transport.New returned error: %v", err)
	}
	tc.OnAuthExpired(ports.AuthExpiredFunc(func(domain.AuthExpired) { f.expired.Add(1) }))
	f.transport = tc
	f.client = api.New(tc, f.store, nil)
	return f
}

func (f *fixture) persisted(t *testing.T) (string, bool) {
	t.Helper()
	v, ok, err := f.persister.Load(context.Background(), session.DefaultStorageKey)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	return v, ok
}

func pngFile(name string) domain.ImageFile {
	return domain.ImageFile{
		Name: name,
		Data: []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"),
	}
}

func TestLoginStoresAndAttachesToken(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.srv.Handle(http.MethodPost, api.PathLogin, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "chris" || body["password"] != "secret" {
			testserver.WriteJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid credentials"})
			return
		}
		testserver.WriteJSON(w, http.StatusOK, map[string]string{"access_token": "abc", "token_type": "bearer"})
	})
	f.srv.Handle(http.MethodPost, api.PathScore, func(w http.ResponseWriter, r *http.Request) {
		testserver.WriteJSON(w, http.StatusOK, testserver.ScoreBody)
	})

	ctx := context.Background()
	resp, err := f.client.Auth.Login(ctx, "chris", "secret")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if resp.AccessToken != "abc" || resp.TokenType != "bearer" {
		t.Fatalf("unexpected login response: %+v", resp)
	}

	if tok, ok := f.store.Current(); !ok || tok != "abc" {
		t.Fatalf("expected current token abc, got %q (%v)", tok, ok)
	}
	if v, ok := f.persisted(t); !ok || v != "abc" {
		t.Fatalf("token not persisted: %q (%v)", v, ok)
	}

	result, err := f.client.Aesthetic.ScoreImage(ctx, pngFile("look.png"))
	if err != nil {
		t.Fatalf("ScoreImage returned error: %v", err)
	}
	if result.AestheticScore != 0.82 || result.TrendAnalysis.MarketAppeal != 0.88 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Metadata == nil || result.Metadata.Format != "PNG" {
		t.Fatalf("metadata not decoded: %+v", result.Metadata)
	}

	rec, ok := f.srv.Last(api.PathScore)
	if !ok {
		t.Fatalf("score request not recorded")
	}
	if got := rec.Header.Get("Authorization"); got != "Bearer abc" {
		t.Fatalf("expected bearer abc, got %q", got)
	}
	if len(rec.Parts) != 1 || rec.Parts[0].Field != "file" || rec.Parts[0].Filename != "look.png" {
		t.Fatalf("unexpected parts: %+v", rec.Parts)
	}
	if rec.Parts[0].ContentType != "image/png" {
		t.Fatalf("part content type %q", rec.Parts[0].ContentType)
	}
}

func TestLoginWithoutTokenLeavesSessionEmpty(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.srv.Handle(http.MethodPost, api.PathLogin, func(w http.ResponseWriter, r *http.Request) {
		testserver.WriteJSON(w, http.StatusOK, map[string]string{"token_type": "bearer"})
	})

	if _, err := f.client.Auth.Login(context.Background(), "chris", "secret"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if f.client.Auth.Authenticated() {
		t.Fatalf("session must stay unauthenticated")
	}
	if _, ok := f.persisted(t); ok {
		t.Fatalf("nothing should be persisted")
	}
}

func TestLogoutIsLocalAndIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.client.Auth.Login(ctx, testserver.Username, testserver.Password); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	before := len(f.srv.Requests())

	for i := 0; i < 2; i++ {
		if err := f.client.Auth.Logout(ctx); err != nil {
			t.Fatalf("Logout #%d returned error: %v", i+1, err)
		}
	}

	if _, ok := f.store.Current(); ok {
		t.Fatalf("token must be absent after logout")
	}
	if _, ok := f.persisted(t); ok {
		t.Fatalf("persisted token must be removed")
	}
	if len(f.srv.Requests()) != before {
		t.Fatalf("logout must not hit the network")
	}
}

func TestInitializeTokenRestoresSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	if err := f.persister.Save(ctx, session.DefaultStorageKey, testserver.Token); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := f.client.Auth.InitializeToken(ctx); err != nil {
		t.Fatalf("InitializeToken returned error: %v", err)
	}

	trends, err := f.client.Trends.GetCurrentTrends(ctx)
	if err != nil {
		t.Fatalf("GetCurrentTrends returned error: %v", err)
	}
	if len(trends) != 3 {
		t.Fatalf("expected 3 trends, got %d", len(trends))
	}
}

func TestUnauthorizedClearsSessionOnAnyOperation(t *testing.T) {
	t.Parallel()

	ops := map[string]func(context.Context, *api.Client) error{
		"score": func(ctx context.Context, c *api.Client) error {
			_, err := c.Aesthetic.ScoreImage(ctx, pngFile("a.png"))
			return err
		},
		"batch": func(ctx context.Context, c *api.Client) error {
			_, err := c.Aesthetic.BatchScore(ctx, []domain.ImageFile{pngFile("a.png")})
			return err
		},
		"predict": func(ctx context.Context, c *api.Client) error {
			_, err := c.Trends.PredictTrends(ctx, "")
			return err
		},
	}

	for name, op := range ops {
		name, op := name, op
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			ctx := context.Background()
			if err := f.store.Set(ctx, "expired-token"); err != nil {
				t.Fatalf("Set returned error: %v", err)
			}

			err := op(ctx, f.client)
			if !errors.Is(err, transport.ErrUnauthorized) {
				t.Fatalf("expected unauthorized, got %v", err)
			}
			if _, ok := f.store.Current(); ok {
				t.Fatalf("token must be cleared")
			}
			if _, ok := f.persisted(t); ok {
				t.Fatalf("persisted token must be cleared")
			}
			if n := f.expired.Load(); n != 1 {
				t.Fatalf("expected one auth-expired event, got %d", n)
			}
		})
	}
}

func TestRepeatedUnauthorizedStaysAbsent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.Set(ctx, "expired-token"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	for i := 0; i < 2; i++ {
		_, err := f.client.Aesthetic.ScoreImage(ctx, pngFile("a.png"))
		if domain.KindOf(err) != domain.KindUnauthorized {
			t.Fatalf("call %d: expected unauthorized, got %v", i+1, err)
		}
	}
	if _, ok := f.store.Current(); ok {
		t.Fatalf("token must stay absent")
	}
	if err := f.client.Auth.Logout(ctx); err != nil {
		t.Fatalf("Logout after 401 returned error: %v", err)
	}
}

func TestScoreImageRejectsEmptyFile(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.client.Aesthetic.ScoreImage(context.Background(), domain.ImageFile{Name: "empty.png"})

	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.srv.Count(api.PathScore) != 0 {
		t.Fatalf("nothing should be sent")
	}
}

func TestBatchScoreSendsRepeatedField(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.Set(ctx, testserver.Token); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	files := []domain.ImageFile{
		pngFile("one.png"),
		{Name: "two.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff, 0xe0}},
	}
	items, err := f.client.Aesthetic.BatchScore(ctx, files)
	if err != nil {
		t.Fatalf("BatchScore returned error: %v", err)
	}
	if len(items) != 2 || items[0].Filename != "one.png" || !items[1].Succeeded() {
		t.Fatalf("unexpected items: %+v", items)
	}

	rec, _ := f.srv.Last(api.PathBatchScore)
	if len(rec.Parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(rec.Parts))
	}
	for _, p := range rec.Parts {
		if p.Field != "files" {
			t.Fatalf("unexpected field %q", p.Field)
		}
	}
	if rec.Parts[1].ContentType != "image/jpeg" {
		t.Fatalf("unexpected content type %q", rec.Parts[1].ContentType)
	}
}

func TestBatchScoreDecodesBareArray(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.srv.Handle(http.MethodPost, api.PathBatchScore, func(w http.ResponseWriter, r *http.Request) {
		testserver.WriteJSON(w, http.StatusOK, []map[string]any{
			{"filename": "a.png", "aesthetic_score": 0.6, "confidence": 0.5, "status": "success"},
			{"filename": "b.png", "status": "error", "error": "cannot identify image file"},
		})
	})

	items, err := f.client.Aesthetic.BatchScore(context.Background(), []domain.ImageFile{pngFile("a.png"), pngFile("b.png")})
	if err != nil {
		t.Fatalf("BatchScore returned error: %v", err)
	}
	if len(items) != 2 || items[0].AestheticScore != 0.6 || items[1].Succeeded() {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestBatchScoreRejectsEmptySelection(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.client.Aesthetic.BatchScore(context.Background(), nil)
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPredictTrendsCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "default", in: "", want: "fashion"},
		{name: "explicit", in: "beauty", want: "beauty"},
		{name: "needs escaping", in: "home & living", want: "home & living"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			if err := f.store.Set(context.Background(), testserver.Token); err != nil {
				t.Fatalf("Set returned error: %v", err)
			}

			trends, err := f.client.Trends.PredictTrends(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("PredictTrends returned error: %v", err)
			}

			rec, _ := f.srv.Last(api.PathTrendsPredict)
			if got := rec.Query.Get("category"); got != tt.want {
				t.Fatalf("expected category %q, got %q", tt.want, got)
			}
			if len(rec.Query["category"]) != 1 {
				t.Fatalf("category must be sent once: %v", rec.Query)
			}
			if len(trends) != 1 || trends[0].Category != tt.want || trends[0].Momentum != domain.MomentumRising {
				t.Fatalf("unexpected trends: %+v", trends)
			}
			if trends[0].PeakEstimate != "6-18 months" {
				t.Fatalf("timeline not mapped: %+v", trends[0])
			}
		})
	}
}

func TestGetCurrentTrendsPassesFieldsThrough(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.srv.Handle(http.MethodGet, api.PathTrendsCurrent, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"trends":[{"name":"Quiet Luxury","score":0.94,"momentum":"rising","category":"fashion","peak_estimate":"Q3"}]}`))
	})

	trends, err := f.client.Trends.GetCurrentTrends(context.Background())
	if err != nil {
		t.Fatalf("GetCurrentTrends returned error: %v", err)
	}
	want := domain.Trend{Name: "Quiet Luxury", Score: 0.94, Momentum: domain.MomentumRising, Category: "fashion", PeakEstimate: "Q3"}
	if len(trends) != 1 || trends[0] != want {
		t.Fatalf("unexpected trends: %+v", trends)
	}
}

func TestGetCurrentTrendsDropsUnknownMomentum(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.srv.Handle(http.MethodGet, api.PathTrendsCurrent, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"trends":[
			{"name":"Quiet Luxury","score":0.94,"momentum":"rising","category":"fashion","peak_estimate":"Q3"},
			{"name":"Mystery","score":0.5,"momentum":"sideways","category":"fashion"},
			{"name":"Unlabelled","score":0.4,"category":"color"},
			{"name":"Earth Tones","score":0.76,"momentum":"declining","category":"color"}
		]}`))
	})

	trends, err := f.client.Trends.GetCurrentTrends(context.Background())
	if err != nil {
		t.Fatalf("GetCurrentTrends returned error: %v", err)
	}
	if len(trends) != 2 || trends[0].Name != "Quiet Luxury" || trends[1].Name != "Earth Tones" {
		t.Fatalf("unexpected trends: %+v", trends)
	}
	for _, tr := range trends {
		if !tr.Momentum.Valid() {
			t.Fatalf("invalid momentum leaked through: %+v", tr)
		}
	}
}

func TestHTTPErrorDoesNotLogout(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.Set(ctx, testserver.Token); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	f.srv.Handle(http.MethodPost, api.PathScore, testserver.Status(http.StatusInternalServerError, "model not loaded"))

	_, err := f.client.Aesthetic.ScoreImage(ctx, pngFile("a.png"))
	var te *transport.Error
	if !errors.As(err, &te) || te.Kind != domain.KindHTTP || te.Status != http.StatusInternalServerError {
		t.Fatalf("expected HTTP 500, got %v", err)
	}
	if te.Message != "model not loaded" {
		t.Fatalf("unexpected message %q", te.Message)
	}
	if _, ok := f.store.Current(); !ok {
		t.Fatalf("token must survive non-401 errors")
	}
	if f.expired.Load() != 0 {
		t.Fatalf("no auth-expired event expected")
	}
}

func TestSystemEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	health, err := f.client.System.Health(ctx)
	if err != nil {
		t.Fatalf("Health returned error: %v", err)
	}
	if health.Status != "healthy" || health.Version != "1.0.0" {
		t.Fatalf("unexpected health: %+v", health)
	}

	detailed, err := f.client.System.DetailedHealth(ctx)
	if err != nil {
		t.Fatalf("DetailedHealth returned error: %v", err)
	}
	if detailed.Components["ml_models"] != "loaded" {
		t.Fatalf("unexpected detailed health: %+v", detailed)
	}

	metrics, err := f.client.System.Metrics(ctx)
	if err != nil {
		t.Fatalf("Metrics returned error: %v", err)
	}
	if _, ok := metrics["application"]; !ok {
		t.Fatalf("metrics not passed through: %v", metrics)
	}
}
