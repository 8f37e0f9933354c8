package redump

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"redumparchive/internal/components/chrono"
	"redumparchive/internal/components/telemetry"
	"redumparchive/lib/testutil"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// scriptedTransport answers every call through the provided functions and
// counts how many calls each url received.
type scriptedTransport struct {
	mu    sync.Mutex
	calls map[string]int
	posts []map[string]string

	text  func(url string, call int) (string, error)
	bytes func(url string, call int) (Download, error)
	post  func(url string, form map[string]string) (string, error)
}

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{calls: map[string]int{}}
}

func (s *scriptedTransport) count(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[url]++
	return s.calls[url]
}

func (s *scriptedTransport) Calls(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[url]
}

func (s *scriptedTransport) GetText(ctx context.Context, url string) (string, error) {
	call := s.count(url)
	if s.text == nil {
		return "", errors.New("no text handler")
	}
	return s.text(url, call)
}

func (s *scriptedTransport) GetBytes(ctx context.Context, url string) (Download, error) {
	call := s.count(url)
	if s.bytes == nil {
		return Download{}, errors.New("no bytes handler")
	}
	return s.bytes(url, call)
}

func (s *scriptedTransport) PostForm(ctx context.Context, url string, form map[string]string) (string, error) {
	s.count(url)
	s.mu.Lock()
	s.posts = append(s.posts, form)
	s.mu.Unlock()
	if s.post == nil {
		return "", errors.New("no post handler")
	}
	return s.post(url, form)
}

func newFakeClock() *chrono.FakeTime {
	return chrono.NewFakeTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func newTestClient(transport Transport, retryLimit int) (*Client, *chrono.FakeTime, *telemetry.Recorder) {
	clock := newFakeClock()
	tel := telemetry.NewRecorder()
	client := NewClient(transport, ClientOptions{RetryLimit: retryLimit}, clock, tel)
	return client, clock, tel
}

func TestFetchTextRetries(t *testing.T) {
	endpoints := DefaultEndpoints()
	url := endpoints.DetailPage(CatalogDiscs, 1)

	t.Run("succeeds after transient failures", func(t *testing.T) {
		transport := newScriptedTransport()
		transport.text = func(_ string, call int) (string, error) {
			if call < 3 {
				return "", fmt.Errorf("connection reset %d", call)
			}
			return "ok", nil
		}
		client, clock, _ := newTestClient(transport, 3)

		page, err := client.FetchText(context.Background(), url)
		require.NoError(t, err)
		require.Equal(t, "ok", page)
		require.Equal(t, 3, transport.Calls(url))
		require.Equal(t, []time.Duration{DefaultRetryDelay, DefaultRetryDelay}, clock.Sleeps())
	})

	t.Run("exhaustion is unavailable", func(t *testing.T) {
		transport := newScriptedTransport()
		transport.text = func(string, int) (string, error) {
			return "", errors.New("timeout")
		}
		client, clock, tel := newTestClient(transport, 2)

		_, err := client.FetchText(context.Background(), url)
		require.ErrorIs(t, err, ErrUnavailable)
		require.Equal(t, 2, transport.Calls(url))
		// no sleep after the final attempt
		require.Len(t, clock.Sleeps(), 1)
		require.Len(t, tel.Reports(report_client_fetch_text), 1)
	})

	t.Run("zero limit uses the default", func(t *testing.T) {
		transport := newScriptedTransport()
		transport.text = func(string, int) (string, error) {
			return "", errors.New("refused")
		}
		client, _, _ := newTestClient(transport, 0)

		_, err := client.FetchText(context.Background(), url)
		require.ErrorIs(t, err, ErrUnavailable)
		require.Equal(t, DefaultRetryLimit, transport.Calls(url))
	})

	t.Run("negative limit never calls the transport", func(t *testing.T) {
		for _, limit := range []int{NoRetries, -5} {
			transport := newScriptedTransport()
			transport.text = func(string, int) (string, error) { return "ok", nil }
			client, _, _ := newTestClient(transport, limit)

			_, err := client.FetchText(context.Background(), url)
			require.ErrorIs(t, err, ErrUnavailable)
			require.Zero(t, transport.Calls(url))
		}
	})

	t.Run("panics count as failed attempts", func(t *testing.T) {
		transport := newScriptedTransport()
		transport.text = func(_ string, call int) (string, error) {
			if call == 1 {
				panic("malformed response")
			}
			return "recovered", nil
		}
		client, _, _ := newTestClient(transport, 3)

		page, err := client.FetchText(context.Background(), url)
		require.NoError(t, err)
		require.Equal(t, "recovered", page)
		require.Equal(t, 2, transport.Calls(url))
	})

	t.Run("cancellation stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		transport := newScriptedTransport()
		transport.text = func(string, int) (string, error) {
			cancel()
			return "", context.Canceled
		}
		client, _, _ := newTestClient(transport, 5)

		_, err := client.FetchText(ctx, url)
		require.ErrorIs(t, err, ErrUnavailable)
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 1, transport.Calls(url))
	})
}

func TestFetchBytesKeepsFilename(t *testing.T) {
	transport := newScriptedTransport()
	transport.bytes = func(string, int) (Download, error) {
		return Download{Body: []byte{0x1f, 0x8b}, Filename: "Sony - PlayStation - Cuesheets.zip"}, nil
	}
	client, _, _ := newTestClient(transport, DefaultRetryLimit)

	system, err := LookupSystem("psx")
	require.NoError(t, err)
	download, err := client.FetchBytes(context.Background(), client.Endpoints().Pack(PackCues, system))
	require.NoError(t, err)
	require.Equal(t, []byte{0x1f, 0x8b}, download.Body)
	require.Equal(t, "Sony - PlayStation - Cuesheets.zip", download.Filename)
}

func TestRetryCallBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.IntRange(1, 10).Draw(t, "limit")
		succeedOn := rapid.IntRange(1, 12).Draw(t, "succeedOn")

		transport := newScriptedTransport()
		transport.text = func(_ string, call int) (string, error) {
			if call >= succeedOn {
				return "page", nil
			}
			return "", errors.New("refused")
		}
		client, _, _ := newTestClient(transport, limit)

		url := "http://redump.org/disc/1/"
		_, err := client.FetchText(context.Background(), url)

		calls := transport.Calls(url)
		if calls > limit {
			t.Fatalf("made %d calls with limit %d", calls, limit)
		}
		if succeedOn == 1 && calls != 1 {
			t.Fatalf("immediate success made %d calls", calls)
		}
		if succeedOn <= limit {
			if err != nil || calls != succeedOn {
				t.Fatalf("expected success after %d calls, got %d calls, err %v", succeedOn, calls, err)
			}
		} else {
			if !errors.Is(err, ErrUnavailable) || calls != limit {
				t.Fatalf("expected %d calls then unavailable, got %d calls, err %v", limit, calls, err)
			}
		}
	})
}

func loginTransport(endpoints Endpoints, response string) *scriptedTransport {
	transport := newScriptedTransport()
	transport.text = func(url string, _ int) (string, error) {
		if url == endpoints.LoginForm() {
			return loginFormPage, nil
		}
		return "", fmt.Errorf("unexpected url %s", url)
	}
	transport.post = func(string, map[string]string) (string, error) {
		return response, nil
	}
	return transport
}

func TestLogin(t *testing.T) {
	endpoints := DefaultEndpoints()

	t.Run("missing credentials make no network call", func(t *testing.T) {
		table := []struct {
			username string
			password string
		}{
			{username: "", password: ""},
			{username: "", password: "secret"},
			{username: "dumper", password: ""},
		}
		for _, row := range table {
			transport := loginTransport(endpoints, loginMemberPage)
			client, _, _ := newTestClient(transport, DefaultRetryLimit)

			outcome, err := client.Login(context.Background(), row.username, row.password)
			require.Equal(t, AuthDenied, outcome)
			require.ErrorIs(t, err, ErrMissingCredentials)
			require.Zero(t, transport.Calls(endpoints.LoginForm()))
			require.False(t, client.IsAuthenticated())
		}
	})

	t.Run("member login", func(t *testing.T) {
		transport := loginTransport(endpoints, loginMemberPage)
		client, _, _ := newTestClient(transport, DefaultRetryLimit)

		outcome, err := client.Login(context.Background(), "dumper", "p&ss word")
		require.NoError(t, err)
		require.Equal(t, AuthSuccess, outcome)
		require.True(t, client.IsAuthenticated())
		require.False(t, client.IsStaff())

		require.Len(t, transport.posts, 1)
		require.Equal(t, map[string]string{
			"form_sent":    "1",
			"redirect_url": "",
			"csrf_token":   "5f1c0ffee7a1b2c3",
			"req_username": "dumper",
			"req_password": "p&ss word",
			"save_pass":    "0",
		}, transport.posts[0])

		// a second login is a no-op
		outcome, err = client.Login(context.Background(), "dumper", "p&ss word")
		require.NoError(t, err)
		require.Equal(t, AuthSuccess, outcome)
		require.Equal(t, 1, transport.Calls(endpoints.LoginForm()))
	})

	t.Run("staff login", func(t *testing.T) {
		transport := loginTransport(endpoints, loginStaffPage)
		client, _, _ := newTestClient(transport, DefaultRetryLimit)

		outcome, err := client.Login(context.Background(), "mod", "secret")
		require.NoError(t, err)
		require.Equal(t, AuthSuccess, outcome)
		require.True(t, client.IsStaff())
	})

	t.Run("bad credentials are not retried", func(t *testing.T) {
		transport := loginTransport(endpoints, loginBadPage)
		client, _, _ := newTestClient(transport, DefaultRetryLimit)

		outcome, err := client.Login(context.Background(), "dumper", "wrong")
		require.Equal(t, AuthDenied, outcome)
		require.ErrorIs(t, err, ErrInvalidCredentials)
		require.Equal(t, 1, transport.Calls(endpoints.LoginPost()))
		require.False(t, client.IsAuthenticated())
	})

	t.Run("transport failures exhaust attempts", func(t *testing.T) {
		transport := loginTransport(endpoints, loginMemberPage)
		transport.post = func(string, map[string]string) (string, error) {
			return "", errors.New("502 bad gateway")
		}
		client, clock, tel := newTestClient(transport, DefaultRetryLimit)

		outcome, err := client.Login(context.Background(), "dumper", "secret")
		require.Equal(t, AuthError, outcome)
		require.Error(t, err)
		require.Equal(t, LoginAttempts, transport.Calls(endpoints.LoginForm()))
		require.Equal(t, LoginAttempts, transport.Calls(endpoints.LoginPost()))
		require.Len(t, clock.Sleeps(), LoginAttempts-1)
		require.NotEmpty(t, tel.Reports(report_client_login))
		require.False(t, client.IsAuthenticated())
	})

	t.Run("missing token is a failed attempt", func(t *testing.T) {
		transport := loginTransport(endpoints, loginMemberPage)
		transport.text = func(string, int) (string, error) {
			return "<html><body>maintenance</body></html>", nil
		}
		client, _, _ := newTestClient(transport, DefaultRetryLimit)

		outcome, _ := client.Login(context.Background(), "dumper", "secret")
		require.Equal(t, AuthError, outcome)
		require.Zero(t, transport.Calls(endpoints.LoginPost()))
	})
}

func TestLoginSpan(t *testing.T) {
	spans := testutil.RecordSpans(t)
	transport := loginTransport(DefaultEndpoints(), loginStaffPage)
	client, _, _ := newTestClient(transport, DefaultRetryLimit)

	_, err := client.Login(context.Background(), "mod", "secret")
	require.NoError(t, err)

	logins := testutil.SpansNamed(spans, "client:Login")
	require.Len(t, logins, 1)
	staff, ok := testutil.Attribute(logins[0], "redump.staff")
	require.True(t, ok)
	require.True(t, staff.AsBool())
}
