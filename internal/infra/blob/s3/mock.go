package s3

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockBucket is the bucket name used by NewMock.
const MockBucket = "mock-bucket"

// Mock is an in-memory http.RoundTripper emulating the S3 subset the Store
// uses: Head, Get, Put, Delete and paginated ListObjectsV2.
type Mock struct {
	mu       sync.Mutex
	objects  map[string]mockObject
	PageSize int
	// FailPuts makes every PutObject answer 500.
	FailPuts bool
}

type mockObject struct {
	body        []byte
	contentType string
	metadata    map[string]string
}

// NewMock returns a Store wired to a fresh Mock transport with static
// credentials, so no network or AWS environment is needed.
func NewMock() (*Store, *Mock) {
	m := &Mock{objects: make(map[string]mockObject), PageSize: 1000}
	store, err := New(context.Background(), Config{
		Bucket:          MockBucket,
		Region:          DefaultRegion,
		Endpoint:        "https://mock.s3.local",
		AccessKeyID:     "AKIAMOCK",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
		HTTPClient:      &http.Client{Transport: m},
	})
	if err != nil {
		panic(fmt.Sprintf("s3 mock: %v", err))
	}
	return store, m
}

// Keys returns the stored object keys in order.
func (m *Mock) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func respond(status int, body string, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: header}
}

func errorBody(code string) string {
	return "<?xml version=\"1.0\" encoding=\"UTF-8\"?><Error><Code>" + code + "</Code><Message>" + code + "</Message></Error>"
}

func (m *Mock) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, key, _ := strings.Cut(strings.TrimPrefix(req.URL.Path, "/"), "/")
	query := req.URL.Query()
	if req.Method == http.MethodGet && query.Get("list-type") == "2" {
		return m.list(query.Get("prefix"), query.Get("continuation-token")), nil
	}

	switch req.Method {
	case http.MethodHead:
		obj, ok := m.objects[key]
		if !ok {
			return respond(http.StatusNotFound, "", nil), nil
		}
		return respond(http.StatusOK, "", obj.header()), nil
	case http.MethodGet:
		obj, ok := m.objects[key]
		if !ok {
			return respond(http.StatusNotFound, errorBody("NoSuchKey"), http.Header{"Content-Type": {"application/xml"}}), nil
		}
		resp := respond(http.StatusOK, string(obj.body), obj.header())
		return resp, nil
	case http.MethodPut:
		if m.FailPuts {
			return respond(http.StatusInternalServerError, errorBody("InternalError"), http.Header{"Content-Type": {"application/xml"}}), nil
		}
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if strings.Contains(req.Header.Get("Content-Encoding"), "aws-chunked") {
			if decoded, ok := decodeChunked(body); ok {
				body = decoded
			}
		}
		md := make(map[string]string)
		for name, values := range req.Header {
			if lower := strings.ToLower(name); strings.HasPrefix(lower, "x-amz-meta-") && len(values) > 0 {
				md[strings.TrimPrefix(lower, "x-amz-meta-")] = values[0]
			}
		}
		m.objects[key] = mockObject{body: body, contentType: req.Header.Get("Content-Type"), metadata: md}
		return respond(http.StatusOK, "", http.Header{"ETag": {"\"" + etag(body) + "\""}}), nil
	case http.MethodDelete:
		delete(m.objects, key)
		return respond(http.StatusNoContent, "", nil), nil
	}
	return respond(http.StatusNotImplemented, errorBody("NotImplemented"), nil), nil
}

func (m *Mock) list(prefix, token string) *http.Response {
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) && k > token {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	size := m.PageSize
	if size <= 0 {
		size = 1000
	}
	truncated := len(keys) > size
	if truncated {
		keys = keys[:size]
	}
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?><ListBucketResult>")
	fmt.Fprintf(&b, "<IsTruncated>%t</IsTruncated>", truncated)
	if truncated {
		fmt.Fprintf(&b, "<NextContinuationToken>%s</NextContinuationToken>", keys[len(keys)-1])
	}
	for _, k := range keys {
		obj := m.objects[k]
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><ETag>&quot;%s&quot;</ETag><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>", k, len(obj.body), etag(obj.body))
	}
	b.WriteString("</ListBucketResult>")
	return respond(http.StatusOK, b.String(), http.Header{"Content-Type": {"application/xml"}})
}

func (o mockObject) header() http.Header {
	h := http.Header{
		"Content-Length": {strconv.Itoa(len(o.body))},
		"ETag":           {"\"" + etag(o.body) + "\""},
		"Last-Modified":  {time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Format(http.TimeFormat)},
	}
	if o.contentType != "" {
		h.Set("Content-Type", o.contentType)
	}
	for k, v := range o.metadata {
		h.Set("X-Amz-Meta-"+k, v)
	}
	return h
}

func etag(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:16])
}

// decodeChunked strips aws-chunked framing: "<hex-size>[;ext]\r\n<data>\r\n"
// repeated until a zero-size chunk, optionally followed by trailers.
func decodeChunked(b []byte) ([]byte, bool) {
	r := bufio.NewReader(bytes.NewReader(b))
	var out bytes.Buffer
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, false
		}
		sizeField, _, _ := strings.Cut(strings.TrimRight(line, "\r\n"), ";")
		size, err := strconv.ParseInt(sizeField, 16, 64)
		if err != nil || size < 0 {
			return nil, false
		}
		if size == 0 {
			return out.Bytes(), true
		}
		if _, err := io.CopyN(&out, r, size); err != nil {
			return nil, false
		}
		if _, err := r.Discard(2); err != nil {
			return nil, false
		}
	}
}
