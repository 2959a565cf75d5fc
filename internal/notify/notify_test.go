package notify

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/favark/favark/internal/models"
	"github.com/favark/favark/internal/shared"
	tu "github.com/favark/favark/internal/testing"
)

func summaryFixture(mode models.RunMode, failed int) *models.RunSummary {
	finished := time.Date(2025, 3, 1, 2, 30, 0, 0, time.UTC)
	s := &models.RunSummary{
		RunID:      "run-1",
		Mode:       mode,
		RangeLabel: "2025-02..2025-03",
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: finished,
		Counts:     models.RunCounts{Total: 3, Uploaded: 3 - failed, Failed: failed},
	}
	for i := 0; i < failed; i++ {
		s.Failures = append(s.Failures, models.Failure{ID: "x", Reason: "upload_failed"})
	}
	return s
}

func renderStub(s *models.RunSummary) []byte {
	return []byte("summary for " + s.RunID)
}

func TestEmailSink(t *testing.T) {
	cfg := shared.EmailConfig{
		SMTPHost: "smtp.example.com",
		SMTPPort: 587,
		SMTPUser: "bot@example.com",
		To:       "owner@example.com; second@example.com",
	}

	t.Run("sends the rendered summary", func(t *testing.T) {
		sink := NewEmailSink(cfg, renderStub)

		var gotTo []string
		var gotSubject, gotBody string
		sink.send = func(ctx context.Context, cfg shared.EmailConfig, to []string, subject, body string) error {
			gotTo, gotSubject, gotBody = to, subject, body
			return nil
		}

		if err := sink.Report(context.Background(), summaryFixture(models.ModeBackup, 0)); err != nil {
			t.Fatalf("Report failed: %v", err)
		}

		if len(gotTo) != 2 {
			t.Errorf("expected 2 recipients, got %v", gotTo)
		}
		if gotSubject != "[favark] 2025-03-01 backup result" {
			t.Errorf("unexpected subject: %s", gotSubject)
		}
		if strings.Contains(gotBody, "WARNING") {
			t.Errorf("clean run must not carry the warning prefix: %s", gotBody)
		}
		if !strings.Contains(gotBody, "summary for run-1") {
			t.Errorf("body missing rendered summary: %s", gotBody)
		}
	})

	t.Run("failed runs get the warning prefix and takeout subject", func(t *testing.T) {
		sink := NewEmailSink(cfg, renderStub)

		var gotSubject, gotBody string
		sink.send = func(ctx context.Context, cfg shared.EmailConfig, to []string, subject, body string) error {
			gotSubject, gotBody = subject, body
			return nil
		}

		if err := sink.Report(context.Background(), summaryFixture(models.ModeTakeout, 2)); err != nil {
			t.Fatalf("Report failed: %v", err)
		}

		if gotSubject != "[favark] 2025-03-01 takeout result" {
			t.Errorf("unexpected subject: %s", gotSubject)
		}
		if !strings.HasPrefix(gotBody, "WARNING: the run recorded failures.") {
			t.Errorf("missing warning prefix: %s", gotBody)
		}
	})

	t.Run("no recipients is a config error", func(t *testing.T) {
		sink := NewEmailSink(shared.EmailConfig{SMTPHost: "smtp.example.com"}, renderStub)

		err := sink.Report(context.Background(), summaryFixture(models.ModeBackup, 0))
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestStepSummarySink(t *testing.T) {
	t.Run("appends markdown to the summary file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "step_summary")
		t.Setenv("GITHUB_STEP_SUMMARY", path)

		sink := &StepSummarySink{Render: renderStub}
		if err := sink.Report(context.Background(), summaryFixture(models.ModeBackup, 0)); err != nil {
			t.Fatalf("Report failed: %v", err)
		}
		if err := sink.Report(context.Background(), summaryFixture(models.ModeBackup, 0)); err != nil {
			t.Fatalf("second Report failed: %v", err)
		}

		content := tu.MustReadFile(t, path)
		if strings.Count(content, "summary for run-1") != 2 {
			t.Errorf("expected two appended summaries, got: %q", content)
		}
	})

	t.Run("no-op outside CI", func(t *testing.T) {
		t.Setenv("GITHUB_STEP_SUMMARY", "")

		sink := &StepSummarySink{Render: renderStub}
		if err := sink.Report(context.Background(), summaryFixture(models.ModeBackup, 0)); err != nil {
			t.Errorf("expected no-op, got %v", err)
		}
	})
}

func TestMultiSink(t *testing.T) {
	t.Run("attempts every sink and returns the first error", func(t *testing.T) {
		failing := &tu.MockSink{Err: errors.New("smtp down")}
		ok := &tu.MockSink{}
		multi := MultiSink{failing, ok}

		err := multi.Report(context.Background(), summaryFixture(models.ModeBackup, 0))
		if err == nil || !strings.Contains(err.Error(), "smtp down") {
			t.Errorf("expected first error, got %v", err)
		}
		if len(ok.Summaries) != 1 {
			t.Error("later sinks must still be attempted")
		}
	})
}

func TestForceTrigger(t *testing.T) {
	ready, err := ForceTrigger(true).Check(context.Background())
	if err != nil || !ready {
		t.Errorf("ForceTrigger(true) = %v, %v", ready, err)
	}
	ready, err = ForceTrigger(false).Check(context.Background())
	if err != nil || ready {
		t.Errorf("ForceTrigger(false) = %v, %v", ready, err)
	}
}

func TestSubjectMatches(t *testing.T) {
	tests := []struct {
		subject string
		want    bool
	}{
		{"Your Google data is ready to download", true},
		{"Google Takeout: export complete", true},
		{"Google 데이터가 준비되었습니다", true},
		{"Security alert", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := subjectMatches(tt.subject); got != tt.want {
			t.Errorf("subjectMatches(%q) = %v, want %v", tt.subject, got, tt.want)
		}
	}
}

// fakeIMAP scripts the mailbox a trigger check will see.
type fakeIMAP struct {
	loginErr  error
	messages  []*imap.Message
	searchIDs []uint32

	selected string
	stored   bool
	loggedIn bool
}

func (f *fakeIMAP) Login(user, pass string) error {
	if f.loginErr != nil {
		return f.loginErr
	}
	f.loggedIn = true
	return nil
}

func (f *fakeIMAP) Select(name string, readOnly bool) (*imap.MailboxStatus, error) {
	f.selected = name
	return &imap.MailboxStatus{Name: name}, nil
}

func (f *fakeIMAP) Search(criteria *imap.SearchCriteria) ([]uint32, error) {
	return f.searchIDs, nil
}

func (f *fakeIMAP) Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	for _, m := range f.messages {
		ch <- m
	}
	close(ch)
	return nil
}

func (f *fakeIMAP) Store(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error {
	f.stored = true
	return nil
}

func (f *fakeIMAP) Logout() error { return nil }

func envelopeMsg(seq uint32, fromHost, subject string) *imap.Message {
	return &imap.Message{
		SeqNum: seq,
		Envelope: &imap.Envelope{
			Subject: subject,
			From:    []*imap.Address{{MailboxName: "noreply", HostName: fromHost}},
		},
	}
}

func TestIMAPTrigger(t *testing.T) {
	cfg := shared.IMAPConfig{Host: "imap.example.com", User: "me", Password: "secret"}

	newTrigger := func(fake *fakeIMAP) *IMAPTrigger {
		trig := NewIMAPTrigger(cfg, nil)
		trig.dial = func(addr string) (imapClient, error) {
			if addr != "imap.example.com:993" {
				t.Errorf("unexpected dial address %s", addr)
			}
			return fake, nil
		}
		return trig
	}

	t.Run("fires on a takeout notification and marks it seen", func(t *testing.T) {
		fake := &fakeIMAP{
			searchIDs: []uint32{1, 2},
			messages: []*imap.Message{
				envelopeMsg(1, "example.com", "Your Google data is ready"),
				envelopeMsg(2, "google.com", "Your Google data is ready to download"),
			},
		}

		ready, err := newTrigger(fake).Check(context.Background())
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if !ready {
			t.Error("expected the trigger to fire")
		}
		if fake.selected != "INBOX" {
			t.Errorf("expected default mailbox INBOX, got %s", fake.selected)
		}
		if !fake.stored {
			t.Error("matched mail must be marked seen")
		}
	})

	t.Run("unrelated mail does not fire", func(t *testing.T) {
		fake := &fakeIMAP{
			searchIDs: []uint32{1},
			messages:  []*imap.Message{envelopeMsg(1, "google.com", "Security alert")},
		}

		ready, err := newTrigger(fake).Check(context.Background())
		if err != nil || ready {
			t.Errorf("expected quiet mailbox, got %v, %v", ready, err)
		}
		if fake.stored {
			t.Error("nothing matched, nothing should be flagged")
		}
	})

	t.Run("empty mailbox does not fire", func(t *testing.T) {
		fake := &fakeIMAP{}

		ready, err := newTrigger(fake).Check(context.Background())
		if err != nil || ready {
			t.Errorf("expected quiet mailbox, got %v, %v", ready, err)
		}
	})

	t.Run("login failure is a hard error", func(t *testing.T) {
		fake := &fakeIMAP{loginErr: errors.New("bad credentials")}

		_, err := newTrigger(fake).Check(context.Background())
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})
}
