package support

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/bibwatch/internal/collector"
	"github.com/MeKo-Tech/bibwatch/internal/result"
	"github.com/MeKo-Tech/bibwatch/internal/review"
	"github.com/MeKo-Tech/bibwatch/internal/uploader"
)

type uploadRecorder struct {
	mu     sync.Mutex
	bodies []string
	fail   bool
}

func (u *uploadRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.fail {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	b, _ := io.ReadAll(r.Body)
	u.bodies = append(u.bodies, string(b))
	w.WriteHeader(http.StatusOK)
}

func (u *uploadRecorder) all() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return strings.Join(u.bodies, "\n")
}

// RegisterReviewSteps registers steps driving the manual review server
// against a real collector and a recording upload endpoint.
func (tc *TestContext) RegisterReviewSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a running review server$`, tc.aRunningReviewServer)
	sc.Step(`^the upload endpoint is unavailable$`, tc.theUploadEndpointIsUnavailable)
	sc.Step(`^the photo "([^"]*)" found no bib numbers$`, tc.thePhotoFoundNoNumbers)
	sc.Step(`^I fetch the next review image$`, tc.iFetchTheNextReviewImage)
	sc.Step(`^I submit "([^"]*)" for the fetched image$`, tc.iSubmitForTheFetchedImage)
	sc.Step(`^I submit "([^"]*)" for "([^"]*)"$`, tc.iSubmitFor)
	sc.Step(`^the response status should be (\d+)$`, tc.theResponseStatusShouldBe)
	sc.Step(`^the fetched image should be "([^"]*)"$`, tc.theFetchedImageShouldBe)
	sc.Step(`^the upload endpoint should have received "([^"]*)"$`, tc.theUploadEndpointShouldHaveReceived)
	sc.Step(`^the photo "([^"]*)" should be in state "([^"]*)"$`, tc.thePhotoShouldBeInState)
}

func (tc *TestContext) aRunningReviewServer() error {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tc.uploads = &uploadRecorder{}
	tc.uploadSrv = httptest.NewServer(tc.uploads)

	store, err := collector.NewFileStore(tc.Path("results.txt"), logger)
	if err != nil {
		return err
	}
	up := uploader.New(uploader.Config{URL: tc.uploadSrv.URL, User: "AI"}, nil, logger)
	tc.collector = collector.New(store, up, collector.WithLogger(logger))
	if err := tc.collector.Load(context.Background()); err != nil {
		return err
	}

	srv, err := review.New(tc.collector, review.DefaultConfig(), logger)
	if err != nil {
		return err
	}
	tc.reviewSrv = httptest.NewServer(srv.Handler())
	return nil
}

func (tc *TestContext) theUploadEndpointIsUnavailable() error {
	tc.uploads.mu.Lock()
	defer tc.uploads.mu.Unlock()
	tc.uploads.fail = true
	return nil
}

func (tc *TestContext) thePhotoFoundNoNumbers(name string) error {
	if err := tc.aPhotoShowingBib(name, 0); err != nil {
		return err
	}
	ctx := context.Background()
	path := tc.Path(name)
	tc.collector.Register(ctx, []string{path})
	claimed := tc.collector.PendingForDetection(ctx)
	found := make(map[string][]int, len(claimed))
	for _, id := range claimed {
		found[id] = nil
	}
	return tc.collector.ApplyAutomaticResults(ctx, found)
}

func (tc *TestContext) iFetchTheNextReviewImage() error {
	resp, err := http.Get(tc.reviewSrv.URL + "/image")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.lastIdentity, err = url.PathUnescape(resp.Header.Get("X-Identity"))
	return err
}

func (tc *TestContext) iSubmitForTheFetchedImage(body string) error {
	if tc.lastIdentity == "" {
		return fmt.Errorf("no image fetched (status %d)", tc.lastStatus)
	}
	return tc.submit(tc.lastIdentity, body)
}

func (tc *TestContext) iSubmitFor(body, name string) error {
	return tc.submit(name, body)
}

func (tc *TestContext) submit(ref, body string) error {
	resp, err := http.Post(tc.reviewSrv.URL+"/image/"+url.PathEscape(ref), "application/json", strings.NewReader(body))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) theResponseStatusShouldBe(status int) error {
	if tc.lastStatus != status {
		return fmt.Errorf("status %d, want %d (body %q)", tc.lastStatus, status, tc.lastBody)
	}
	return nil
}

func (tc *TestContext) theFetchedImageShouldBe(name string) error {
	if want := tc.Path(name); tc.lastIdentity != want {
		return fmt.Errorf("fetched %q, want %q", tc.lastIdentity, want)
	}
	return nil
}

func (tc *TestContext) theUploadEndpointShouldHaveReceived(row string) error {
	if got := tc.uploads.all(); !strings.Contains(got, row) {
		return fmt.Errorf("uploads do not contain %q:\n%s", row, got)
	}
	return nil
}

func (tc *TestContext) thePhotoShouldBeInState(name, state string) error {
	snap, ok := tc.collector.Get(tc.Path(name))
	if !ok {
		return fmt.Errorf("%s is not known", name)
	}
	want, err := result.ParseState(state)
	if err != nil {
		return err
	}
	if snap.State != want {
		return fmt.Errorf("%s is %s, want %s", name, snap.State, want)
	}
	return nil
}
