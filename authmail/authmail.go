// Package authmail retrieves two-factor codes from the dealership's auth
// mailbox over IMAP. It implements session.CodeSource: one short-lived
// connection per poll, nothing cached between polls.
package authmail

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/dealerops/featuresync/config"
)

// defaultCodePattern matches the verification emails the target
// application sends. First capture group is the code.
const defaultCodePattern = `verification code is:?\s*(\d{6})`

// Client polls an IMAP mailbox for verification codes.
type Client struct {
	cfg     config.AuthEmailConfig
	pattern *regexp.Regexp
	logger  *slog.Logger
}

// New creates a Client. The code pattern must contain one capture group for
// the code itself.
func New(cfg config.AuthEmailConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pat := cfg.CodePattern
	if pat == "" {
		pat = defaultCodePattern
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return nil, fmt.Errorf("authmail: code pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("authmail: code pattern %q has no capture group", pat)
	}
	return &Client{cfg: cfg, pattern: re, logger: logger}, nil
}

// PollLatestCode searches the configured mailbox folder for verification
// emails addressed to recipient and received after since, and returns the
// code from the newest one, or "" when none has arrived. Transport failures
// are returned as errors; the session manager treats them as "not yet" and
// keeps polling.
func (c *Client) PollLatestCode(ctx context.Context, recipient string, since time.Time) (string, error) {
	cl, err := imapclient.DialTLS(c.cfg.Server, nil)
	if err != nil {
		return "", fmt.Errorf("authmail: dial %s: %w", c.cfg.Server, err)
	}
	defer cl.Close()

	if err := cl.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		return "", fmt.Errorf("authmail: login: %w", err)
	}
	defer cl.Logout()

	if _, err := cl.Select(c.cfg.Mailbox, nil).Wait(); err != nil {
		return "", fmt.Errorf("authmail: select %s: %w", c.cfg.Mailbox, err)
	}

	data, err := cl.Search(c.searchCriteria(recipient, since), nil).Wait()
	if err != nil {
		return "", fmt.Errorf("authmail: search: %w", err)
	}
	seqs := data.AllSeqNums()
	if len(seqs) == 0 {
		return "", nil
	}

	// Walk newest-first until a body yields a code.
	section := &imap.FetchItemBodySection{Specifier: imap.PartSpecifierText}
	for i := len(seqs) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		msgs, err := cl.Fetch(imap.SeqSetNum(seqs[i]), &imap.FetchOptions{
			Envelope:    true,
			BodySection: []*imap.FetchItemBodySection{section},
		}).Collect()
		if err != nil {
			return "", fmt.Errorf("authmail: fetch: %w", err)
		}
		if len(msgs) == 0 {
			continue
		}
		msg := msgs[0]
		if msg.Envelope != nil && msg.Envelope.Date.Before(since) {
			continue
		}

		if code := c.Extract(string(msg.FindBodySection(section))); code != "" {
			c.logger.Debug("authmail: code found", "mailbox", c.cfg.Mailbox, "recipient", recipient)
			return code, nil
		}
	}

	return "", nil
}

// searchCriteria builds the server-side filter for one poll: messages since
// the challenge was issued, from the application's sender, addressed to the
// account whose session is being authenticated.
func (c *Client) searchCriteria(recipient string, since time.Time) *imap.SearchCriteria {
	criteria := &imap.SearchCriteria{
		// IMAP SINCE has day granularity; the body-side time check in
		// PollLatestCode does the fine filtering.
		Since: since.Truncate(24 * time.Hour),
	}
	if c.cfg.Sender != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{Key: "From", Value: c.cfg.Sender})
	}
	if recipient != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{Key: "To", Value: recipient})
	}
	return criteria
}

// Extract pulls the code out of an email body, or returns "".
func (c *Client) Extract(body string) string {
	m := c.pattern.FindStringSubmatch(body)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
