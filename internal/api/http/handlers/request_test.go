package handlers

import (
	"bufio"
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		endOfDay bool
		want     *time.Time
		wantErr  bool
	}{
		{name: "empty", in: ""},
		{name: "rfc3339", in: "2024-03-02T10:00:00Z", want: ptrTime(time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC))},
		{name: "date lower bound", in: "2024-03-02", want: ptrTime(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))},
		{name: "date upper bound", in: "2024-03-02", endOfDay: true, want: ptrTime(time.Date(2024, 3, 2, 23, 59, 59, 999999999, time.UTC))},
		{name: "garbage", in: "yesterday", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTime(tt.in, tt.endOfDay)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
				return
			}
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %s", got)
		})
	}
}

func TestSplitCSV(t *testing.T) {
	assert.Nil(t, splitCSV(""))
	assert.Equal(t, []string{"open", "waiting"}, splitCSV(" open, ,waiting "))
}

func TestParseInt(t *testing.T) {
	assert.Equal(t, 3, parseInt("3", 1))
	assert.Equal(t, 1, parseInt("", 1))
	assert.Equal(t, 1, parseInt("-2", 1))
	assert.Equal(t, 1, parseInt("x", 1))
}

func TestSenderTypeFor(t *testing.T) {
	assert.Equal(t, domain.SenderContact, senderTypeFor(domain.Actor{Role: domain.RoleContact}))
	assert.Equal(t, domain.SenderAgent, senderTypeFor(domain.Actor{Role: domain.RoleAgent}))
	assert.Equal(t, domain.SenderAgent, senderTypeFor(domain.Actor{Role: domain.RoleAdmin}))
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPumpStreamReplaysBacklogAndSkipsDuplicates(t *testing.T) {
	out := &lockedBuffer{}
	w := bufio.NewWriter(out)
	live := make(chan domain.ChatMessage, 4)
	done := make(chan struct{})

	backlog := []domain.ChatMessage{
		{ID: 1, SessionID: 9, SenderType: domain.SenderContact, Message: "first"},
		{ID: 2, SessionID: 9, SenderType: domain.SenderAgent, Message: "second"},
	}
	live <- domain.ChatMessage{ID: 2, SessionID: 9, Message: "second"}
	live <- domain.ChatMessage{ID: 3, SessionID: 9, Message: "third"}

	finished := make(chan struct{})
	go func() {
		pumpStream(w, backlog, live, done, time.Hour)
		close(finished)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "id: 3\n")
	}, time.Second, 5*time.Millisecond)
	close(done)
	<-finished

	body := out.String()
	assert.True(t, strings.HasPrefix(body, ": connected\n\n"))
	assert.Equal(t, 1, strings.Count(body, "id: 2\n"))
	assert.Less(t, strings.Index(body, "id: 1\n"), strings.Index(body, "id: 2\n"))
	assert.Less(t, strings.Index(body, "id: 2\n"), strings.Index(body, "id: 3\n"))
	assert.Contains(t, body, `"message":"third"`)
	assert.Contains(t, body, "event: message\n")
}

func TestPumpStreamKeepAlive(t *testing.T) {
	out := &lockedBuffer{}
	w := bufio.NewWriter(out)
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		pumpStream(w, nil, make(chan domain.ChatMessage), done, 10*time.Millisecond)
		close(finished)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), ": keepalive\n\n")
	}, time.Second, 5*time.Millisecond)
	close(done)
	<-finished
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
