package syncer_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/jobcard/internal/notify"
	"github.com/garnizeh/jobcard/internal/probe"
	"github.com/garnizeh/jobcard/internal/repository/sqlite"
	"github.com/garnizeh/jobcard/internal/syncer"
	"github.com/garnizeh/jobcard/pkg/errs"
	"github.com/garnizeh/jobcard/pkg/models"
	"github.com/garnizeh/jobcard/pkg/repository/mock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var session = models.Session{EmpID: "E1", Name: "Ada", Department: "IT"}

func setupLocal(t *testing.T) *sqlite.SQLiteRepo {
	t.Helper()
	repo, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "local.db"), nil)
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func card(id int64, number, dept string) models.JobCard {
	return models.JobCard{
		ID:             id,
		JobNumber:      number,
		Title:          "Printer jam",
		Description:    "Tray 2 jams",
		Status:         models.StatusOpen,
		CreatedDate:    time.Date(2025, 1, 1, 9, 0, 0, 0, time.Local),
		DepartmentName: dept,
	}
}

// gate is a Checker that blocks until released, holding the sync guard.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gate) IsOnline(ctx context.Context) bool {
	close(g.entered)
	<-g.release
	return true
}

func TestDownload(t *testing.T) {
	ctx := context.Background()
	local := setupLocal(t)
	remote := mock.NewRemote()
	remote.JobCards = []models.JobCard{
		card(1202501010001, "IT20250101-0001", "IT"),
		card(1202501010002, "IT20250101-0002", "IT"),
		card(2202501010001, "HR20250101-0001", "HR"),
	}

	e := syncer.New(local, remote, probe.Fixed(true), "abcd")
	rep, err := e.Download(ctx, session)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if rep.Total != 2 || rep.Synced != 2 || len(rep.Failures) != 0 {
		t.Fatalf("unexpected report %+v", rep)
	}

	got, err := local.ListJobCards(ctx, "IT", nil)
	if err != nil {
		t.Fatalf("ListJobCards: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 local rows, got %d", len(got))
	}
	for i, jc := range got {
		want := remote.JobCards[i]
		if jc.ID != want.ID || jc.JobNumber != want.JobNumber || jc.Title != want.Title || !jc.CreatedDate.Equal(want.CreatedDate) {
			t.Fatalf("row %d differs: got %+v want %+v", i, jc, want)
		}
	}

	// a second download updates rows in place
	remote.JobCards[0].Status = models.StatusCompleted
	if _, err := e.Download(ctx, session); err != nil {
		t.Fatalf("second Download: %v", err)
	}
	jc, err := local.GetJobCard(ctx, 1202501010001)
	if err != nil || jc == nil {
		t.Fatalf("GetJobCard: %v %v", jc, err)
	}
	if jc.Status != models.StatusCompleted {
		t.Fatalf("expected status update, got %q", jc.Status)
	}
}

func TestDownload_PartialFailure(t *testing.T) {
	ctx := context.Background()
	local := setupLocal(t)

	// a locally minted row already holds the job number the central store
	// assigned to a different id
	clash := card(1202501019999, "IT20250101-0002", "IT")
	if err := local.CreateJobCard(ctx, &clash); err != nil {
		t.Fatalf("seed local row: %v", err)
	}

	remote := mock.NewRemote()
	remote.JobCards = []models.JobCard{
		card(1202501010001, "IT20250101-0001", "IT"),
		card(1202501010002, "IT20250101-0002", "IT"),
		card(1202501010003, "IT20250101-0003", "IT"),
	}

	e := syncer.New(local, remote, probe.Fixed(true), "abcd")
	rep, err := e.Download(ctx, session)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if rep.Total != 3 || rep.Synced != 2 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if len(rep.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %+v", rep.Failures)
	}
	f := rep.Failures[0]
	if f.ID != 1202501010002 || f.JobNumber != "IT20250101-0002" {
		t.Fatalf("failure reported for the wrong record: %+v", f)
	}
	if !errors.Is(f.Err, errs.ErrDuplicateRecord) {
		t.Fatalf("expected ErrDuplicateRecord, got %v", f.Err)
	}

	for _, id := range []int64{1202501010001, 1202501010003} {
		jc, err := local.GetJobCard(ctx, id)
		if err != nil || jc == nil {
			t.Fatalf("expected row %d stored: %v %v", id, jc, err)
		}
	}
	if jc, err := local.GetJobCard(ctx, 1202501010002); err != nil || jc != nil {
		t.Fatalf("expected conflicting row to be skipped, got %v %v", jc, err)
	}
	if jc, err := local.GetJobCard(ctx, clash.ID); err != nil || jc == nil || jc.JobNumber != clash.JobNumber {
		t.Fatalf("local row must be left untouched, got %v %v", jc, err)
	}
}

func TestDownload_Offline(t *testing.T) {
	remote := mock.NewRemote()
	e := syncer.New(setupLocal(t), remote, probe.Fixed(false), "abcd")
	_, err := e.Download(context.Background(), session)
	if !errors.Is(err, errs.ErrNetworkUnavailable) {
		t.Fatalf("expected ErrNetworkUnavailable, got %v", err)
	}
	if remote.Calls() != 0 {
		t.Fatalf("remote store was queried while offline")
	}
	if e.Busy() {
		t.Fatalf("busy flag left set")
	}
}

func TestDownload_RemoteError(t *testing.T) {
	remote := mock.NewRemote()
	remote.ListErr = fmt.Errorf("query: %w", errs.ErrStore)
	e := syncer.New(setupLocal(t), remote, probe.Fixed(true), "abcd")
	if _, err := e.Download(context.Background(), session); !errors.Is(err, errs.ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
	if e.Busy() {
		t.Fatalf("busy flag left set")
	}
}

func TestSingleFlight(t *testing.T) {
	ctx := context.Background()
	local := setupLocal(t)
	remote := mock.NewRemote()
	remote.JobCards = []models.JobCard{card(1202501010001, "IT20250101-0001", "IT")}

	g := &gate{entered: make(chan struct{}), release: make(chan struct{})}
	feed := notify.NewFeed(10, nil)
	e := syncer.New(local, remote, g, "abcd", syncer.WithNotifier(feed))

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = e.Download(ctx, session)
	}()
	<-g.entered

	if !e.Busy() {
		t.Fatalf("expected busy during download")
	}
	for name, op := range map[string]func() error{
		"download":  func() error { _, err := e.Download(ctx, session); return err },
		"upload":    func() error { _, err := e.Upload(ctx, session); return err },
		"directory": func() error { _, err := e.SyncDirectory(ctx); return err },
	} {
		if err := op(); !errors.Is(err, errs.ErrSyncInProgress) {
			t.Fatalf("%s: expected ErrSyncInProgress, got %v", name, err)
		}
	}
	if remote.Calls() != 0 {
		t.Fatalf("rejected calls touched the remote store")
	}
	if got, _ := local.ListJobCards(ctx, "IT", nil); len(got) != 0 {
		t.Fatalf("rejected calls touched the local store")
	}

	close(g.release)
	wg.Wait()
	if firstErr != nil {
		t.Fatalf("first download: %v", firstErr)
	}
	if e.Busy() {
		t.Fatalf("busy flag left set")
	}

	var warned bool
	for _, ev := range feed.Since(0) {
		if ev.Severity == notify.Warning {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("expected a sync-in-progress warning")
	}
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	local := setupLocal(t)
	remote := mock.NewRemote()

	pending := card(1202501010001, "IT20250101-0001-Dabcd", "IT")
	other := card(1202501010002, "IT20250101-0002-Dzzzz", "IT")
	for _, jc := range []models.JobCard{pending, other} {
		jc := jc
		if err := local.CreateJobCard(ctx, &jc); err != nil {
			t.Fatalf("CreateJobCard: %v", err)
		}
	}

	e := syncer.New(local, remote, probe.Fixed(true), "abcd")
	rep, err := e.Upload(ctx, session)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if rep.Uploaded != 1 || rep.Total != 1 {
		t.Fatalf("unexpected report %+v", rep)
	}

	cards := remote.Cards()
	if len(cards) != 1 || cards[0].JobNumber != "IT20250101-0001" || cards[0].ID != pending.ID {
		t.Fatalf("unexpected remote rows %+v", cards)
	}
	jc, err := local.GetJobCard(ctx, pending.ID)
	if err != nil || jc == nil {
		t.Fatalf("GetJobCard: %v %v", jc, err)
	}
	if jc.JobNumber != "IT20250101-0001" {
		t.Fatalf("local row not renamed: %q", jc.JobNumber)
	}
	if jc, _ := local.GetJobCard(ctx, other.ID); jc.JobNumber != other.JobNumber {
		t.Fatalf("row from another device was touched: %q", jc.JobNumber)
	}

	rep, err = e.Upload(ctx, session)
	if err != nil {
		t.Fatalf("second Upload: %v", err)
	}
	if rep.Uploaded != 0 {
		t.Fatalf("expected nothing to upload, got %+v", rep)
	}
}

func TestUpload_SkipsExisting(t *testing.T) {
	ctx := context.Background()
	local := setupLocal(t)
	remote := mock.NewRemote()
	remote.JobCards = []models.JobCard{card(9, "ABC20250101-0007", "IT")}

	jc := card(1202501010007, "ABC20250101-0007-D1a2b", "IT")
	if err := local.CreateJobCard(ctx, &jc); err != nil {
		t.Fatalf("CreateJobCard: %v", err)
	}

	e := syncer.New(local, remote, probe.Fixed(true), "1a2b")
	rep, err := e.Upload(ctx, session)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if rep.Skipped != 1 || rep.Uploaded != 0 || len(rep.Failures) != 0 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if len(remote.Cards()) != 1 {
		t.Fatalf("remote row inserted for an existing job number")
	}
}

func TestUpload_PartialFailure(t *testing.T) {
	ctx := context.Background()
	local := setupLocal(t)
	remote := mock.NewRemote()
	remote.InsertErr = fmt.Errorf("insert: %w", errs.ErrDuplicateRecord)

	jc := card(1202501010003, "IT20250101-0003-Dabcd", "IT")
	if err := local.CreateJobCard(ctx, &jc); err != nil {
		t.Fatalf("CreateJobCard: %v", err)
	}

	e := syncer.New(local, remote, probe.Fixed(true), "abcd")
	rep, err := e.Upload(ctx, session)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(rep.Failures) != 1 || !errors.Is(rep.Failures[0].Err, errs.ErrDuplicateRecord) {
		t.Fatalf("expected one duplicate failure, got %+v", rep.Failures)
	}
	if got, _ := local.GetJobCard(ctx, jc.ID); got.JobNumber != jc.JobNumber {
		t.Fatalf("failed upload renamed local row to %q", got.JobNumber)
	}

	remote.InsertErr = errors.New("connection reset")
	rep, err = e.Upload(ctx, session)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(rep.Failures) != 1 || !errors.Is(rep.Failures[0].Err, errs.ErrStore) {
		t.Fatalf("expected store failure, got %+v", rep.Failures)
	}
}

func TestSyncDirectory(t *testing.T) {
	ctx := context.Background()
	local := setupLocal(t)
	remote := mock.NewRemote()
	remote.AddDepartment(1, "IT")
	remote.AddDepartment(2, "HR")
	remote.Users = []models.User{
		{EmpID: "E1", Password: "secret", Name: "Ada", DepartmentName: "IT", CanLogin: true},
		{EmpID: "E2", Password: "nope", Name: "Bob", DepartmentName: "HR", CanLogin: false},
	}

	e := syncer.New(local, remote, probe.Fixed(true), "abcd", syncer.WithHashCost(bcrypt.MinCost))
	rep, err := e.SyncDirectory(ctx)
	if err != nil {
		t.Fatalf("SyncDirectory: %v", err)
	}
	if rep.Synced != 3 {
		t.Fatalf("unexpected report %+v", rep)
	}

	u, err := local.GetUser(ctx, "E1")
	if err != nil || u == nil {
		t.Fatalf("GetUser: %v %v", u, err)
	}
	if u.Password == "secret" {
		t.Fatalf("password cached in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("secret")); err != nil {
		t.Fatalf("cached hash does not match: %v", err)
	}
	if u, _ := local.GetUser(ctx, "E2"); u != nil {
		t.Fatalf("user without login rights was cached")
	}
	d, err := local.GetDepartment(ctx, 2)
	if err != nil || d == nil || d.Name != "HR" {
		t.Fatalf("GetDepartment: %+v %v", d, err)
	}
}
