package portal

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/shazow/wifiportal/internal/connmgr"
	"github.com/shazow/wifiportal/internal/creds"
	"github.com/shazow/wifiportal/internal/kv"
	"github.com/shazow/wifiportal/internal/led"
	"github.com/shazow/wifiportal/internal/loop"
	"github.com/shazow/wifiportal/internal/scan"
	"github.com/shazow/wifiportal/radio"
	"github.com/shazow/wifiportal/radio/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var testAssets = fstest.MapFS{
	"index.html": {Data: []byte("<html>portal</html>")},
	"app.js":     {Data: []byte("console.log('hi')")},
	"logo.svg":   {Data: []byte("<svg/>")},
	"notes.txt":  {Data: []byte("hello")},
	"data.bin":   {Data: []byte{0, 1, 2}},
}

type harness struct {
	radio *mock.Radio
	kv    *kv.Memory
	led   *led.Pin
	url   string
}

func newHarness(t *testing.T, mem *kv.Memory, assets fs.FS) *harness {
	t.Helper()
	r := mock.New()
	r.ActionSleep = 0
	r.ScanPolls = 1
	r.JoinPolls = 2
	r.Networks = []mock.Network{
		{SSID: "HomeNet", RSSI: -54, Auth: radio.AuthWPA2PSK, Passphrase: "hunter2hunter2"},
		{SSID: "Guest", RSSI: -71, Auth: radio.AuthOpen},
	}
	require.NoError(t, r.EnableDualMode())
	_, err := r.StartAP("ESP32_Config", "configureme")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cm := connmgr.New(discard, r, creds.New(discard, mem, ""))
	cm.AttemptPoll = 5 * time.Millisecond
	cm.LoadFromStore(ctx)
	sc := scan.New(discard, r)
	lp := loop.New(discard, sc, cm)
	lp.Yield = time.Millisecond
	go lp.Run(ctx)

	l := led.NewMock()
	srv := New(discard, Options{Exec: lp, Scans: sc, Conn: cm, Link: r, LED: l, Assets: assets})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &harness{radio: r, kv: mem, led: l, url: ts.URL}
}

type response struct {
	status      int
	body        string
	contentType string
}

func (h *harness) do(t *testing.T, method, path, contentType, body string) response {
	t.Helper()
	req, err := http.NewRequest(method, h.url+path, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, body: string(b), contentType: resp.Header.Get("Content-Type")}
}

func (h *harness) get(t *testing.T, path string) response {
	return h.do(t, http.MethodGet, path, "", "")
}

func (h *harness) post(t *testing.T, path, body string) response {
	return h.do(t, http.MethodPost, path, "application/json", body)
}

func TestColdBootNoCredentials(t *testing.T) {
	h := newHarness(t, kv.NewMemory(), testAssets)

	resp := h.get(t, "/status")
	assert.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "application/json", resp.contentType)
	assert.JSONEq(t, `{"connected":false,"ssid":"","ip":"0.0.0.0"}`, resp.body)

	ssid, open, ok := h.radio.AP()
	assert.True(t, ok)
	assert.Equal(t, "ESP32_Config", ssid)
	assert.False(t, open)
}

func TestScanLifecycle(t *testing.T) {
	h := newHarness(t, kv.NewMemory(), testAssets)

	assert.JSONEq(t, `[]`, h.get(t, "/scan").body)

	resp := h.post(t, "/scan_trigger", "")
	require.Equal(t, http.StatusOK, resp.status)
	assert.JSONEq(t, `{"started":true}`, resp.body)
	assert.JSONEq(t, `[{"_scanning":true}]`, h.get(t, "/scan").body)

	want := `[{"ssid":"HomeNet","rssi":-54,"secure":true},{"ssid":"Guest","rssi":-71,"secure":false}]`
	require.Eventually(t, func() bool {
		return h.get(t, "/scan").body == want
	}, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, 1, h.radio.Counts().ScanReleases)
}

func TestRepeatedTrigger(t *testing.T) {
	h := newHarness(t, kv.NewMemory(), testAssets)

	assert.JSONEq(t, `{"started":true}`, h.post(t, "/scan_trigger", "").body)
	assert.JSONEq(t, `{"started":false}`, h.post(t, "/scan_trigger", "").body)

	require.Eventually(t, func() bool {
		return h.radio.Counts().ScanReleases == 1
	}, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, 1, h.radio.Counts().ScanStarts)
}

func TestProvisionAndPersist(t *testing.T) {
	mem := kv.NewMemory()
	h := newHarness(t, mem, testAssets)

	resp := h.post(t, "/connect", `{"ssid":"HomeNet","pass":"hunter2hunter2"}`)
	require.Equal(t, http.StatusOK, resp.status)
	assert.JSONEq(t, `{"success":true,"ip":"0.0.0.0"}`, resp.body)

	connected := `{"connected":true,"ssid":"HomeNet","ip":"192.168.1.42"}`
	require.Eventually(t, func() bool {
		return h.get(t, "/status").body == connected+"\n"
	}, 3*time.Second, 20*time.Millisecond)

	// Reboot with the same store and environment.
	rebooted := newHarness(t, mem, testAssets)
	require.Eventually(t, func() bool {
		return rebooted.get(t, "/status").body == connected+"\n"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestConnectReportsCurrentAddress(t *testing.T) {
	h := newHarness(t, kv.NewMemory(), testAssets)
	h.post(t, "/connect", `{"ssid":"Guest","pass":""}`)
	require.Eventually(t, func() bool {
		return strings.Contains(h.get(t, "/status").body, `"connected":true`)
	}, 3*time.Second, 20*time.Millisecond)

	resp := h.post(t, "/connect", `{"ssid":"HomeNet","pass":"hunter2hunter2"}`)
	assert.JSONEq(t, `{"success":true,"ip":"192.168.1.42"}`, resp.body)
}

func TestBadProvisioning(t *testing.T) {
	mem := kv.NewMemory()
	h := newHarness(t, mem, testAssets)

	resp := h.post(t, "/connect", `{"ssid":"","pass":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.JSONEq(t, `{"success":false,"message":"SSID required"}`, resp.body)

	resp = h.post(t, "/connect", `{"ssid":"`+strings.Repeat("s", 33)+`","pass":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.JSONEq(t, `{"success":false,"message":"SSID too long"}`, resp.body)

	_, ok, err := mem.Get(context.Background(), creds.DefaultNamespace, "ssid")
	require.NoError(t, err)
	assert.False(t, ok, "store must be unchanged")
	assert.JSONEq(t, `{"connected":false,"ssid":"","ip":"0.0.0.0"}`, h.get(t, "/status").body)
	assert.Equal(t, 0, h.radio.Counts().StationBegins)
}

func TestConnectStoreFailure(t *testing.T) {
	mem := kv.NewMemory()
	mem.FailWrites = errors.New("flash worn out")
	h := newHarness(t, mem, testAssets)

	resp := h.post(t, "/connect", `{"ssid":"HomeNet","pass":"hunter2hunter2"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.status)
	assert.JSONEq(t, `{"success":false,"message":"failed to save credentials"}`, resp.body)
}

func TestConnectFormEncoded(t *testing.T) {
	mem := kv.NewMemory()
	h := newHarness(t, mem, testAssets)

	resp := h.do(t, http.MethodPost, "/connect", "application/x-www-form-urlencoded", "ssid=HomeNet&password=hunter2hunter2")
	require.Equal(t, http.StatusOK, resp.status)

	pass, _, err := mem.Get(context.Background(), creds.DefaultNamespace, "pass")
	require.NoError(t, err)
	assert.Equal(t, "hunter2hunter2", pass)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newHarness(t, kv.NewMemory(), testAssets)

	for _, path := range []string{"/connect", "/scan_trigger"} {
		resp := h.get(t, path)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.status, path)
		assert.JSONEq(t, `{"success":false,"message":"Method Not Allowed"}`, resp.body, path)
	}
	for _, path := range []string{"/scan", "/status", "/led", "/index.html"} {
		resp := h.post(t, path, "")
		assert.Equal(t, http.StatusMethodNotAllowed, resp.status, path)
	}
}

func TestLED(t *testing.T) {
	h := newHarness(t, kv.NewMemory(), testAssets)

	assert.JSONEq(t, `{"on":false}`, h.get(t, "/led").body)
	assert.JSONEq(t, `{"on":true}`, h.get(t, "/led?state=on").body)
	assert.JSONEq(t, `{"on":true}`, h.get(t, "/led").body)
	assert.JSONEq(t, `{"on":true}`, h.get(t, "/led?state=blink").body, "unknown state leaves the led alone")
	assert.JSONEq(t, `{"on":false}`, h.get(t, "/led?state=off").body)
	assert.JSONEq(t, `{"on":false}`, h.get(t, "/led?state=ON").body)

	on, err := h.led.On()
	require.NoError(t, err)
	assert.False(t, on)
}

func TestStatic(t *testing.T) {
	h := newHarness(t, kv.NewMemory(), testAssets)

	tests := []struct {
		path        string
		status      int
		contentType string
		body        string
	}{
		{"/", http.StatusOK, "text/html", "<html>portal</html>"},
		{"/index.html", http.StatusOK, "text/html", "<html>portal</html>"},
		{"/app.js", http.StatusOK, "application/javascript", "console.log('hi')"},
		{"/logo.svg", http.StatusOK, "image/svg+xml", "<svg/>"},
		{"/notes.txt", http.StatusOK, "text/plain", "hello"},
		{"/missing.css", http.StatusNotFound, "", "Not found\n"},
	}
	for _, tc := range tests {
		resp := h.get(t, tc.path)
		assert.Equal(t, tc.status, resp.status, tc.path)
		assert.Equal(t, tc.body, resp.body, tc.path)
		if tc.contentType != "" {
			assert.Equal(t, tc.contentType, resp.contentType, tc.path)
		}
	}
}

func TestMissingIndex(t *testing.T) {
	h := newHarness(t, kv.NewMemory(), fstest.MapFS{})
	resp := h.get(t, "/")
	assert.Equal(t, http.StatusInternalServerError, resp.status)
	assert.Equal(t, "index.html not found\n", resp.body)
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"/a.htm":  "text/html",
		"/a.HTML": "text/html",
		"/a.css":  "text/css",
		"/a.png":  "image/png",
		"/a.jpg":  "image/jpeg",
		"/a.jpeg": "image/jpeg",
		"/a.json": "application/json",
		"/a.bin":  "text/plain",
		"/no-ext": "text/plain",
	}
	for name, want := range tests {
		assert.Equal(t, want, contentType(name), name)
	}
}

func TestParseConnect(t *testing.T) {
	s := New(discard, Options{})
	tests := []struct {
		name        string
		contentType string
		body        string
		want        connectRequest
	}{
		{"json", "application/json", `{"ssid":"HomeNet","pass":"hunter2hunter2"}`, connectRequest{SSID: "HomeNet", Pass: "hunter2hunter2"}},
		{"json without content type", "", `{"pass":"p","ssid":"HomeNet"}`, connectRequest{SSID: "HomeNet", Pass: "p"}},
		{"json escapes", "application/json", `{"ssid":"Quote\"d\nNet","pass":""}`, connectRequest{SSID: "Quote\"d\nNet"}},
		{"truncated json", "text/plain", `{"ssid": "HomeNet", "pass": "hunter2`, connectRequest{SSID: "HomeNet"}},
		{"loose object", "text/plain", `{"ssid" : "HomeNet", "pass" : "abc", extra}`, connectRequest{SSID: "HomeNet", Pass: "abc"}},
		{"form", "application/x-www-form-urlencoded", "ssid=Home+Net&pass=abc", connectRequest{SSID: "Home Net", Pass: "abc"}},
		{"form legacy password", "application/x-www-form-urlencoded; charset=utf-8", "ssid=HomeNet&password=abc", connectRequest{SSID: "HomeNet", Pass: "abc", Password: "abc"}},
		{"garbage", "", "hello", connectRequest{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, s.parseConnect(tc.contentType, []byte(tc.body)))
		})
	}
}

func TestLogAssets(t *testing.T) {
	var buf strings.Builder
	LogAssets(slog.New(slog.NewTextHandler(&buf, nil)), testAssets)
	assert.Contains(t, buf.String(), "path=/index.html")
	assert.Contains(t, buf.String(), "bytes=19")
}
