package notify_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobwatch-engine/internal/notify"
	"jobwatch-engine/internal/notify/mocks"
)

var alert = notify.Alert{
	Employer: "Nvidia",
	Title:    "Software Intern",
	Location: "Haifa, Israel",
	ApplyURL: "https://nvidia.wd5.myworkdayjobs.com/en-US/NVIDIAExternalCareerSite/job/123",
}

func TestSubjectAndBody(t *testing.T) {
	assert.Equal(t, "New Nvidia Role: Software Intern", notify.Subject(alert))
	assert.Equal(t, "Role: Software Intern\nLocation: Haifa, Israel\nApply: "+alert.ApplyURL, notify.Body(alert))
	assert.Equal(t, "Scraper Test: Connection Successful", notify.Subject(notify.Alert{Test: true}))
}

func TestMultiTriesEveryTransport(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := mocks.NewMockNotifier(ctrl)
	b := mocks.NewMockNotifier(ctrl)

	a.EXPECT().Name().Return("a").AnyTimes()
	b.EXPECT().Name().Return("b").AnyTimes()
	a.EXPECT().Notify(gomock.Any(), alert).Return(errors.New("smtp down"))
	b.EXPECT().Notify(gomock.Any(), alert).Return(nil)

	m := notify.Multi{a, b}
	err := m.Notify(context.Background(), alert)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: smtp down")
	assert.Equal(t, "a+b", m.Name())
}

func TestSelfTestSendsTestAlert(t *testing.T) {
	ctrl := gomock.NewController(t)
	n := mocks.NewMockNotifier(ctrl)
	n.EXPECT().Name().Return("mock").AnyTimes()
	n.EXPECT().Notify(gomock.Any(), notify.Alert{Test: true}).Return(errors.New("unreachable"))

	err := notify.SelfTest(context.Background(), n)
	assert.ErrorContains(t, err, "self-test mock")
}

func TestEmailComposesAndSends(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
		gotAuth smtp.Auth
	)
	e, err := notify.NewEmail(notify.EmailConfig{
		Host:     "smtp.example.com",
		From:     "watcher@example.com",
		To:       "me@example.com",
		Password: "secret",
	})
	require.NoError(t, err)
	notify.SetSendMail(e, func(_ context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotTo, gotMsg = addr, a, to, string(msg)
		return nil
	})

	require.NoError(t, e.Notify(context.Background(), alert))

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"me@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: New Nvidia Role: Software Intern")
	assert.Contains(t, gotMsg, "Role: Software Intern")
	assert.Contains(t, gotMsg, "Apply: "+alert.ApplyURL)

	mech, ir, err := gotAuth.Start(&smtp.ServerInfo{Name: "smtp.example.com", TLS: true})
	require.NoError(t, err)
	assert.Equal(t, "PLAIN", mech)
	assert.Equal(t, "\x00watcher@example.com\x00secret", string(ir))

	_, _, err = gotAuth.Start(&smtp.ServerInfo{Name: "smtp.example.com", TLS: false})
	assert.Error(t, err, "credentials must not go over plaintext")
}

// silentSMTP accepts connections and never sends a greeting.
func silentSMTP(t *testing.T) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func TestEmailGivesUpOnSilentServer(t *testing.T) {
	host, port := silentSMTP(t)
	e, err := notify.NewEmail(notify.EmailConfig{
		Host:     host,
		Port:     port,
		From:     "watcher@example.com",
		To:       "me@example.com",
		Password: "secret",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.Notify(ctx, alert) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("Notify did not return after its context expired")
	}
}

func TestSelfTestReturnsOnStalledTransport(t *testing.T) {
	host, port := silentSMTP(t)
	e, err := notify.NewEmail(notify.EmailConfig{
		Host:     host,
		Port:     port,
		From:     "watcher@example.com",
		To:       "me@example.com",
		Password: "secret",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	assert.Error(t, notify.SelfTest(ctx, e))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNewEmailRequiresPassword(t *testing.T) {
	_, err := notify.NewEmail(notify.EmailConfig{Host: "h", From: "a@b", To: "c@d"})
	assert.Error(t, err)
}

func TestTelegramSendsToChat(t *testing.T) {
	var (
		mu   sync.Mutex
		sent []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"watch","username":"watch_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			mu.Lock()
			sent = append(sent, r.Form.Get("chat_id")+"|"+r.Form.Get("text"))
			mu.Unlock()
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tg, err := notify.NewTelegram("TOKEN", 42, srv.URL+"/bot%s/%s")
	require.NoError(t, err)
	require.NoError(t, tg.Notify(context.Background(), alert))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sent, 1)
	assert.True(t, strings.HasPrefix(sent[0], "42|New Nvidia Role: Software Intern"))
}

func TestTelegramHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/getMe") {
			_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"watch","username":"watch_bot"}}`)
			return
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	tg, err := notify.NewTelegram("TOKEN", 42, srv.URL+"/bot%s/%s")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = tg.Notify(ctx, alert)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestTelegramRequiresChatID(t *testing.T) {
	_, err := notify.NewTelegram("TOKEN", 0, "")
	assert.Error(t, err)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublishesJSON(t *testing.T) {
	w := &fakeWriter{}
	k := notify.NewKafkaWithWriter(w, "jobwatch.matches")

	require.NoError(t, k.Notify(context.Background(), alert))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, alert.ApplyURL, string(w.msgs[0].Key))
	assert.Contains(t, string(w.msgs[0].Value), `"title":"Software Intern"`)
	assert.Contains(t, string(w.msgs[0].Value), `"employer":"Nvidia"`)

	w.err = errors.New("broker gone")
	assert.ErrorContains(t, k.Notify(context.Background(), alert), "jobwatch.matches")
}
