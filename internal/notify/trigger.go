package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/favark/favark/internal/shared"
)

// takeoutSubjects are the subject keywords Google uses for Takeout-ready
// notifications (English and Korean variants).
var takeoutSubjects = []string{
	"Takeout",
	"데이터가 준비",
	"data is ready",
	"Google data is ready",
}

// maxTriggerScan caps how many unseen messages one check inspects.
const maxTriggerScan = 50

// IMAPTrigger answers true when the mailbox holds an unseen Takeout-ready
// notification from Google. Matched messages are marked seen (best-effort) so
// the same export does not re-trigger the next run.
type IMAPTrigger struct {
	cfg    shared.IMAPConfig
	logger *log.Logger
	// dial is swapped in tests.
	dial func(addr string) (imapClient, error)
}

// imapClient is the slice of go-imap's client favark uses.
type imapClient interface {
	Login(username, password string) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Search(criteria *imap.SearchCriteria) ([]uint32, error)
	Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Store(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	Logout() error
}

// NewIMAPTrigger creates a mailbox trigger for the configured account.
func NewIMAPTrigger(cfg shared.IMAPConfig, logger *log.Logger) *IMAPTrigger {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &IMAPTrigger{
		cfg:    cfg,
		logger: logger,
		dial: func(addr string) (imapClient, error) {
			return client.DialTLS(addr, nil)
		},
	}
}

// Check scans unseen mail for a Takeout-ready notification. An IMAP failure
// is an error, not a silent false: the caller aborts rather than risk an
// unexpected large run.
func (t *IMAPTrigger) Check(ctx context.Context) (bool, error) {
	addr := t.cfg.Host
	if !strings.Contains(addr, ":") {
		addr += ":993"
	}

	c, err := t.dial(addr)
	if err != nil {
		return false, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	defer c.Logout()

	if err := c.Login(t.cfg.User, t.cfg.Password); err != nil {
		return false, fmt.Errorf("%w: IMAP login: %v", shared.ErrAuthFailed, err)
	}

	mailbox := t.cfg.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := c.Select(mailbox, false); err != nil {
		return false, fmt.Errorf("failed to select mailbox %s: %w", mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := c.Search(criteria)
	if err != nil {
		return false, fmt.Errorf("IMAP search failed: %w", err)
	}
	if len(ids) == 0 {
		return false, nil
	}
	if len(ids) > maxTriggerScan {
		ids = ids[len(ids)-maxTriggerScan:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	messages := make(chan *imap.Message, len(ids))
	if err := c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid}, messages); err != nil {
		return false, fmt.Errorf("IMAP fetch failed: %w", err)
	}

	matched := new(imap.SeqSet)
	found := false
	for msg := range messages {
		if msg == nil || msg.Envelope == nil {
			continue
		}
		if !fromGoogle(msg.Envelope.From) {
			continue
		}
		if !subjectMatches(msg.Envelope.Subject) {
			continue
		}
		matched.AddNum(msg.SeqNum)
		found = true
	}

	if !found {
		return false, nil
	}

	// Mark matched messages seen so they never re-trigger. Best-effort.
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.Store(matched, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		t.logger.Warn("failed to mark trigger mail seen", "err", err)
	}

	return true, nil
}

func fromGoogle(addrs []*imap.Address) bool {
	for _, a := range addrs {
		if a == nil {
			continue
		}
		full := strings.ToLower(a.Address())
		if strings.Contains(full, "google") {
			return true
		}
	}
	return false
}

func subjectMatches(subject string) bool {
	lower := strings.ToLower(subject)
	for _, kw := range takeoutSubjects {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
