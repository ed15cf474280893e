package sink

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
)

// ExtractedLink is the normalized result recovered from a sink response.
type ExtractedLink struct {
	URL      string
	FileName string
	FileSize int64
}

// ErrUploadRejected is returned when the sink reported an explicit failure.
type ErrUploadRejected struct {
	Message string
}

func (e *ErrUploadRejected) Error() string {
	if e.Message == "" {
		return "sink rejected the upload"
	}
	return "sink rejected the upload: " + e.Message
}

var absoluteURLPattern = regexp.MustCompile(`https?://[^\s"]+`)

// patternMismatchMarker identifies one known class of sink error string that
// still embeds the final URL.
const patternMismatchMarker = "did not match the expected pattern"

// shapeMatcher inspects one decoded response shape. ok=false means "not my
// shape, try the next one".
type shapeMatcher func(value interface{}, origin string) (link *ExtractedLink, ok bool, err error)

// matchers are ordered by precedence; the first match wins. Sinks do not
// share a schema, so each observed shape gets its own matcher.
var matchers = []shapeMatcher{
	matchSuccessFlag,
	matchArray,
	matchObject,
	matchErrorSalvage,
	matchBareString,
}

// Normalize recovers a usable link from a raw sink response. It returns
// (nil, nil) when no shape matched: the upload may still have succeeded, the
// caller must treat a missing link as distinct from an upload failure.
func Normalize(raw []byte, sinkBaseURL string) (*ExtractedLink, error) {
	origin := originOf(sinkBaseURL)

	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		value = string(raw)
	}

	for _, match := range matchers {
		link, ok, err := match(value, origin)
		if err != nil {
			return nil, err
		}
		if ok {
			return link, nil
		}
	}
	return nil, nil
}

func originOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimRight(baseURL, "/")
	}
	return u.Scheme + "://" + u.Host
}

// matchSuccessFlag handles objects carrying an explicit success flag. This
// shape overrides every heuristic below it: success=false fails the
// normalization outright, success=true reads url/fixedUrl directly.
func matchSuccessFlag(value interface{}, origin string) (*ExtractedLink, bool, error) {
	obj, isObj := value.(map[string]interface{})
	if !isObj {
		return nil, false, nil
	}
	flag, hasFlag := obj["success"].(bool)
	if !hasFlag {
		return nil, false, nil
	}
	if !flag {
		msg, _ := obj["message"].(string)
		return nil, false, &ErrUploadRejected{Message: msg}
	}

	link := stringField(obj, "url")
	if link == "" {
		link = stringField(obj, "fixedUrl")
	}
	if link == "" {
		return nil, false, nil
	}
	return &ExtractedLink{
		URL:      link,
		FileName: firstNonEmpty(stringField(obj, "fileName"), extractFileName(link)),
		FileSize: intField(obj, "fileSize"),
	}, true, nil
}

// matchArray handles responses shaped like [{"src": "/file/x.jpg"}, ...];
// only the first element is inspected.
func matchArray(value interface{}, origin string) (*ExtractedLink, bool, error) {
	arr, isArr := value.([]interface{})
	if !isArr || len(arr) == 0 {
		return nil, false, nil
	}

	switch item := arr[0].(type) {
	case map[string]interface{}:
		if link := linkFromObject(item, origin); link != nil {
			return link, true, nil
		}
	case string:
		u := item
		if !isAbsoluteURL(u) {
			u = origin + "/file/" + item
		}
		return &ExtractedLink{URL: u, FileName: extractFileName(item)}, true, nil
	}
	return nil, false, nil
}

// matchObject handles plain objects without a success flag: url, src, file,
// or nested data.url.
func matchObject(value interface{}, origin string) (*ExtractedLink, bool, error) {
	obj, isObj := value.(map[string]interface{})
	if !isObj {
		return nil, false, nil
	}
	if link := linkFromObject(obj, origin); link != nil {
		return link, true, nil
	}
	if data, isData := obj["data"].(map[string]interface{}); isData {
		if u := stringField(data, "url"); u != "" {
			return &ExtractedLink{
				URL:      u,
				FileName: firstNonEmpty(stringField(data, "fileName"), extractFileName(u)),
				FileSize: intField(data, "fileSize"),
			}, true, nil
		}
	}
	return nil, false, nil
}

// matchErrorSalvage scans a known error string for an embedded absolute URL.
// Best effort only: filename and size are lost.
func matchErrorSalvage(value interface{}, origin string) (*ExtractedLink, bool, error) {
	s, isStr := value.(string)
	if !isStr || !strings.Contains(s, patternMismatchMarker) {
		return nil, false, nil
	}
	if match := absoluteURLPattern.FindString(s); match != "" {
		return &ExtractedLink{URL: match}, true, nil
	}
	return nil, false, nil
}

// matchBareString treats the whole body as either an absolute URL or a bare
// filename served under the conventional /file/ path.
func matchBareString(value interface{}, origin string) (*ExtractedLink, bool, error) {
	s, isStr := value.(string)
	if !isStr || s == "" {
		return nil, false, nil
	}
	if isAbsoluteURL(s) {
		return &ExtractedLink{URL: s, FileName: extractFileName(s)}, true, nil
	}
	return &ExtractedLink{URL: origin + "/file/" + s, FileName: extractFileName(s)}, true, nil
}

func linkFromObject(obj map[string]interface{}, origin string) *ExtractedLink {
	if u := stringField(obj, "url"); u != "" {
		return &ExtractedLink{
			URL:      u,
			FileName: firstNonEmpty(stringField(obj, "fileName"), extractFileName(u)),
			FileSize: intField(obj, "fileSize"),
		}
	}
	if src := stringField(obj, "src"); src != "" {
		return &ExtractedLink{
			URL:      resolveSrc(origin, src),
			FileName: extractFileName(src),
			FileSize: intField(obj, "fileSize"),
		}
	}
	if file := stringField(obj, "file"); file != "" {
		return &ExtractedLink{
			URL:      origin + "/file/" + file,
			FileName: firstNonEmpty(stringField(obj, "fileName"), extractFileName(file)),
			FileSize: intField(obj, "fileSize"),
		}
	}
	return nil
}

// resolveSrc joins a src value to the sink origin exactly once. Absolute
// URLs pass through; a leading slash is an origin-relative path; anything
// else is a path segment.
func resolveSrc(origin, src string) string {
	switch {
	case isAbsoluteURL(src):
		return src
	case strings.HasPrefix(src, "/"):
		return origin + src
	default:
		return origin + "/" + src
	}
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// extractFileName takes the final path segment with any query string
// removed. When the segment has no extension but the URL carries the
// conventional /file/ marker, the segment after the marker wins.
func extractFileName(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parts := strings.Split(rawURL, "/")
	name := parts[len(parts)-1]
	name = strings.SplitN(name, "?", 2)[0]

	if !strings.Contains(name, ".") && strings.Contains(rawURL, "/file/") {
		after := strings.SplitN(rawURL, "/file/", 2)[1]
		name = strings.SplitN(after, "?", 2)[0]
	}
	return name
}

func stringField(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	return s
}

func intField(obj map[string]interface{}, key string) int64 {
	f, _ := obj[key].(float64)
	return int64(f)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
