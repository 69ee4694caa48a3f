package imap

import (
	"bytes"
	"context"
	"testing"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/partsvault/approvalstack/config"
)

func newTestScanner() *Scanner {
	return NewScanner(&config.MonitorConfig{FullScanLookbackDays: 7}, getLogger())
}

func TestBuildCriteria_Incremental(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	criteria := newTestScanner().BuildCriteria(false, now)

	assert.Equal(t, []string{goimap.SeenFlag}, criteria.WithoutFlags)
	assert.True(t, criteria.Since.IsZero(), "incremental scans must not carry a SINCE window")
}

func TestBuildCriteria_FullScanCoversLookbackWindow(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	criteria := newTestScanner().BuildCriteria(true, now)

	assert.Empty(t, criteria.WithoutFlags, "full scans re-read seen messages")
	assert.Equal(t, time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC), criteria.Since)
}

func TestBuildCriteria_SubjectTokenAlternatives(t *testing.T) {
	criteria := newTestScanner().BuildCriteria(false, time.Now().UTC())

	assert.Len(t, criteria.Or, 1)
	assert.Equal(t, []string{subjectToken}, criteria.Or[0][0].Header["Subject"])
	assert.Equal(t, []string{"Re: " + subjectToken}, criteria.Or[0][1].Header["Subject"])
}

func TestScan_NoMatchesSkipsFetch(t *testing.T) {
	fetched := false
	conn := &fakeConn{
		searchFn: func(criteria *goimap.SearchCriteria) ([]uint32, error) {
			return nil, nil
		},
		fetchFn: func(seqset *goimap.SeqSet, items []goimap.FetchItem, ch chan *goimap.Message) error {
			fetched = true
			return nil
		},
	}

	messages, err := newTestScanner().Scan(context.Background(), conn, false)

	assert.NoError(t, err)
	assert.Empty(t, messages)
	assert.False(t, fetched)
}

func TestScan_SearchErrorPropagates(t *testing.T) {
	conn := &fakeConn{
		searchFn: func(criteria *goimap.SearchCriteria) ([]uint32, error) {
			return nil, errors.New("BAD search rejected")
		},
	}

	_, err := newTestScanner().Scan(context.Background(), conn, false)

	assert.Error(t, err)
}

func TestScan_FetchesAndParsesMessages(t *testing.T) {
	raw := "Subject: RE: Purchase Order #202503-0001 - [PO-APPROVAL-abc123]\r\n" +
		"From: John Doe <john.doe@acme.com>\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Approved, thanks\r\n"

	conn := &fakeConn{
		searchFn: func(criteria *goimap.SearchCriteria) ([]uint32, error) {
			return []uint32{42}, nil
		},
		fetchFn: func(seqset *goimap.SeqSet, items []goimap.FetchItem, ch chan *goimap.Message) error {
			// Fetch responses never carry .PEEK; GetBody strips it before matching.
			section := &goimap.BodySectionName{}
			ch <- &goimap.Message{
				Uid: 42,
				Envelope: &goimap.Envelope{
					Subject: "RE: Purchase Order #202503-0001 - [PO-APPROVAL-abc123]",
					From: []*goimap.Address{{
						MailboxName: "john.doe",
						HostName:    "acme.com",
					}},
				},
				Body: map[*goimap.BodySectionName]goimap.Literal{
					section: bytes.NewBufferString(raw),
				},
			}
			return nil
		},
	}

	messages, err := newTestScanner().Scan(context.Background(), conn, false)

	assert.NoError(t, err)
	assert.Len(t, messages, 1)
	assert.Equal(t, uint32(42), messages[0].UID)
	assert.Equal(t, "RE: Purchase Order #202503-0001 - [PO-APPROVAL-abc123]", messages[0].Subject)
	assert.Equal(t, "john.doe@acme.com", messages[0].From)
	assert.Contains(t, messages[0].BodyText, "Approved, thanks")
}

func TestScan_BrokenMessageIsSkipped(t *testing.T) {
	conn := &fakeConn{
		searchFn: func(criteria *goimap.SearchCriteria) ([]uint32, error) {
			return []uint32{7, 8}, nil
		},
		fetchFn: func(seqset *goimap.SeqSet, items []goimap.FetchItem, ch chan *goimap.Message) error {
			section := &goimap.BodySectionName{}
			// First message has no body section, second is intact.
			ch <- &goimap.Message{Uid: 7, Envelope: &goimap.Envelope{Subject: "broken"}}
			ch <- &goimap.Message{
				Uid:      8,
				Envelope: &goimap.Envelope{Subject: "[PO-APPROVAL-xyz789]"},
				Body: map[*goimap.BodySectionName]goimap.Literal{
					section: bytes.NewBufferString("Subject: x\r\n\r\nOn hold\r\n"),
				},
			}
			return nil
		},
	}

	messages, err := newTestScanner().Scan(context.Background(), conn, false)

	assert.NoError(t, err)
	assert.Len(t, messages, 1)
	assert.Equal(t, uint32(8), messages[0].UID)
}
