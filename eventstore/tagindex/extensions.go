package tagindex

import (
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/abadojack/whatlanggo"
	nostr "github.com/soapbox-pub/ditto-sub000"
)

// LanguageThreshold is the minimum detector confidence for a language to be recorded.
const LanguageThreshold = 0.9

var (
	nostrEntityRe = regexp.MustCompile(`nostr:(npub|note|nprofile|nevent|naddr)1[023456789acdefghjklmnpqrstuvwxyz]+`)
	urlRe         = regexp.MustCompile(`https?://[^\s<>"']+`)
	clientAddrRe  = regexp.MustCompile(`^31990:[0-9a-f]{64}:.+$`)
)

var (
	imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".avif", ".svg"}
	videoExtensions = []string{".mp4", ".webm", ".mov", ".m4v", ".ogv"}
	audioExtensions = []string{".mp3", ".ogg", ".wav", ".flac", ".m4a"}
)

// DetectLanguage returns the ISO 639-1 code of text, or "" when the detector is not confident.
func DetectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	if info.Confidence < LanguageThreshold {
		return ""
	}
	return info.Lang.Iso6391()
}

func isPostKind(kind nostr.Kind) bool {
	return kind == nostr.KindTextNote || kind == nostr.KindPicture ||
		kind == nostr.KindComment || kind == nostr.KindArticle
}

// LanguageExtensions builds the extension function around a language detector. A nil
// detector disables language detection.
func LanguageExtensions(detect func(string) string) func(nostr.Event) map[string]string {
	return func(evt nostr.Event) map[string]string {
		ext := make(map[string]string, 6)

		if reply, ok := isReply(evt); ok {
			ext["reply"] = boolString(reply)
		}

		if detect != nil && isPostKind(evt.Kind) {
			if lang := detect(plainText(evt.Content)); lang != "" {
				ext["language"] = lang
			}
		}

		media, video := mediaFlags(evt)
		ext["media"] = boolString(media)
		ext["video"] = boolString(video)

		if tag := evt.Tags.Find("client"); len(tag) >= 3 && clientAddrRe.MatchString(tag[2]) {
			ext["client"] = tag[2]
		}

		ext["protocol"] = "nostr"
		if tag := evt.Tags.Find("proxy"); len(tag) >= 3 && tag[2] != "" {
			ext["protocol"] = strings.ToLower(tag[2])
		}

		return ext
	}
}

func isReply(evt nostr.Event) (reply bool, applicable bool) {
	switch evt.Kind {
	case nostr.KindTextNote, nostr.KindVoiceMessage, nostr.KindVoiceReply:
		return evt.Tags.Has("e"), true
	case nostr.KindComment:
		root := evt.Tags.Find("E")
		parent := evt.Tags.Find("e")
		return parent != nil && (root == nil || root[1] != parent[1]), true
	}
	return false, false
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// plainText removes links and entity references, leaving only what a language detector can use.
func plainText(content string) string {
	content = urlRe.ReplaceAllString(content, "")
	content = nostrEntityRe.ReplaceAllString(content, "")
	return strings.TrimSpace(content)
}

func mediaFlags(evt nostr.Event) (media bool, video bool) {
	var mimes []string
	for imeta := range evt.Tags.FindAll("imeta") {
		for _, entry := range imeta[1:] {
			if m, ok := strings.CutPrefix(entry, "m "); ok {
				mimes = append(mimes, m)
			}
		}
	}

	if len(mimes) > 0 {
		video = !slices.ContainsFunc(mimes, func(m string) bool { return !strings.HasPrefix(m, "video/") })
		return true, video
	}

	if evt.Tags.Has("imeta") {
		return true, false
	}

	var exts []string
	for _, link := range urlRe.FindAllString(evt.Content, -1) {
		ext := strings.ToLower(path.Ext(strings.SplitN(link, "?", 2)[0]))
		if slices.Contains(imageExtensions, ext) || slices.Contains(videoExtensions, ext) || slices.Contains(audioExtensions, ext) {
			exts = append(exts, ext)
		}
	}
	if len(exts) == 0 {
		return false, false
	}
	video = !slices.ContainsFunc(exts, func(ext string) bool { return !slices.Contains(videoExtensions, ext) })
	return true, video
}
