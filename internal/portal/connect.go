package portal

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
)

type connectRequest struct {
	SSID string `json:"ssid" schema:"ssid"`
	Pass string `json:"pass" schema:"pass"`
	// Password is the field name used by older forms.
	Password string `json:"-" schema:"password"`
}

func (s *Server) readConnectRequest(w http.ResponseWriter, r *http.Request) (connectRequest, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return connectRequest{}, err
	}
	return s.parseConnect(r.Header.Get("Content-Type"), body), nil
}

// parseConnect accepts a JSON object, a form, or anything that contains
// "ssid" and "pass" keys followed by quoted strings.
func (s *Server) parseConnect(contentType string, body []byte) connectRequest {
	var req connectRequest
	if mediaType, _, _ := mime.ParseMediaType(contentType); mediaType == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(body))
		if err == nil && s.decoder.Decode(&req, values) == nil {
			if req.Pass == "" {
				req.Pass = req.Password
			}
			return req
		}
		req = connectRequest{}
	}
	if err := json.Unmarshal(body, &req); err == nil {
		return req
	}
	return connectRequest{
		SSID: quotedValue(body, "ssid"),
		Pass: quotedValue(body, "pass"),
	}
}

// quotedValue finds "key" in body and returns the next double-quoted string
// after the following colon.
func quotedValue(body []byte, key string) string {
	i := bytes.Index(body, []byte(`"`+key+`"`))
	if i < 0 {
		return ""
	}
	rest := body[i+len(key)+2:]
	c := bytes.IndexByte(rest, ':')
	if c < 0 {
		return ""
	}
	rest = rest[c+1:]
	q1 := bytes.IndexByte(rest, '"')
	if q1 < 0 {
		return ""
	}
	rest = rest[q1+1:]
	q2 := bytes.IndexByte(rest, '"')
	if q2 < 0 {
		return ""
	}
	return string(rest[:q2])
}
