package services

import (
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	urlpkg "net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	ytapi "github.com/hightemp/youtube-transcript-api-go/api"
	yt "github.com/kkdai/youtube/v2"

	"cinescript-backend/internal/logger"
	"cinescript-backend/internal/models"
)

type YouTubeService struct {
	httpClient    *http.Client
	transcriptAPI *ytapi.YouTubeTranscriptApi
	ytClient      *yt.Client
}

type timedTextXML struct {
	XMLName xml.Name  `xml:"transcript"`
	Texts   []textXML `xml:"text"`
}

type textXML struct {
	Start string `xml:"start,attr"`
	Dur   string `xml:"dur,attr"`
	Text  string `xml:",chardata"`
}

func NewYouTubeService() *YouTubeService {
	return &YouTubeService{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		transcriptAPI: ytapi.NewYouTubeTranscriptApi(),
		ytClient:      &yt.Client{},
	}
}

// ExtractVideoID resolves the 11-character video ID from any of the URL
// shapes YouTube uses.
func ExtractVideoID(url string) string {
	parsed, err := urlpkg.Parse(url)
	if err == nil {
		host := strings.ToLower(parsed.Host)
		path := strings.Trim(parsed.Path, "/")

		// youtube.com/watch?v=VIDEO_ID
		if strings.Contains(host, "youtube.com") {
			if v := parsed.Query().Get("v"); len(v) == 11 {
				return v
			}

			parts := strings.Split(path, "/")
			if len(parts) >= 2 {
				switch parts[0] {
				case "shorts", "embed", "v":
					if len(parts[1]) == 11 {
						return parts[1]
					}
				}
			}
		}

		// youtu.be/VIDEO_ID
		if strings.Contains(host, "youtu.be") {
			if len(path) >= 11 {
				candidate := strings.Split(path, "/")[0]
				if len(candidate) == 11 {
					return candidate
				}
			}
		}
	}

	// Fallback regex for unusual URL forms
	re := regexp.MustCompile(`(?:v=|\/v\/|youtu\.be\/|embed\/|shorts\/)([a-zA-Z0-9_-]{11})`)
	if m := re.FindStringSubmatch(url); len(m) > 1 {
		return m[1]
	}

	return ""
}

// HasCaptions reports whether YouTube exposes any caption track for the
// video. Used to skip the speech-to-text call when captions exist.
func (s *YouTubeService) HasCaptions(videoID string) bool {
	transcript, err := s.transcriptAPI.GetTranscript(videoID, nil)
	if err != nil {
		return false
	}
	return len(transcript.Entries) > 0
}

// GetTimedCaptions fetches YouTube's own caption track with start and
// duration attributes intact and converts it to subtitle segments.
func (s *YouTubeService) GetTimedCaptions(videoID string) ([]models.Segment, error) {
	pageURL := fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
	req, _ := http.NewRequest("GET", pageURL, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch YouTube page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read YouTube page: %w", err)
	}

	captionURL, err := extractCaptionURL(string(body))
	if err != nil {
		return nil, err
	}

	captionResp, err := s.httpClient.Get(captionURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch captions: %w", err)
	}
	defer captionResp.Body.Close()

	captionBody, err := io.ReadAll(captionResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read captions: %w", err)
	}

	segments, err := parseCaptionsXML(captionBody)
	if err != nil {
		return nil, fmt.Errorf("failed to parse captions XML: %w", err)
	}

	logger.S().Infow("fetched timed captions", "video_id", videoID, "segments", len(segments))
	return segments, nil
}

func extractCaptionURL(pageHTML string) (string, error) {
	re := regexp.MustCompile(`"captionTracks"\s*:\s*\[(.*?)\],\s*"`)
	matches := re.FindStringSubmatch(pageHTML)
	if len(matches) < 2 {
		re2 := regexp.MustCompile(`"playerCaptionsTracklistRenderer"\s*:\s*\{(?:.*?,)?\s*"captionTracks"\s*:\s*\[(.*?)\],\s*"`)
		matches = re2.FindStringSubmatch(pageHTML)
		if len(matches) < 2 {
			return "", fmt.Errorf("no captions available for this video")
		}
	}

	tracksJSON := matches[1]
	reURL := regexp.MustCompile(`"baseUrl"\s*:\s*"(.*?)"`)
	urlMatches := reURL.FindStringSubmatch(tracksJSON)
	if len(urlMatches) < 2 {
		return "", fmt.Errorf("caption track found but baseUrl missing")
	}

	u := urlMatches[1]
	u = strings.ReplaceAll(u, `\u0026`, "&")
	u = strings.ReplaceAll(u, `\/`, "/")

	return u, nil
}

func parseCaptionsXML(data []byte) ([]models.Segment, error) {
	var tt timedTextXML
	if err := xml.Unmarshal(data, &tt); err != nil {
		return nil, err
	}

	var segments []models.Segment
	for i, t := range tt.Texts {
		text := strings.TrimSpace(html.UnescapeString(t.Text))
		if text == "" {
			continue
		}

		start, err := strconv.ParseFloat(t.Start, 64)
		if err != nil {
			continue
		}
		dur, err := strconv.ParseFloat(t.Dur, 64)
		if err != nil || dur <= 0 {
			continue
		}

		segments = append(segments, models.Segment{
			ID:           "seg-" + strconv.Itoa(i+1),
			StartTime:    start,
			EndTime:      start + dur,
			OriginalText: text,
		})
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("captions XML empty")
	}

	return segments, nil
}

// DownloadVideo saves the best muxed (audio+video) stream to destPath and
// returns the video title.
func (s *YouTubeService) DownloadVideo(videoURL, destPath string) (string, error) {
	video, err := s.ytClient.GetVideo(videoURL)
	if err != nil {
		return "", &ExternalServiceError{Service: "youtube", Err: fmt.Errorf("failed to fetch video metadata: %w", err)}
	}

	formats := video.Formats.WithAudioChannels()
	var best *yt.Format
	for i := range formats {
		f := &formats[i]
		if f.QualityLabel == "" {
			continue // audio-only
		}
		if best == nil || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	if best == nil {
		return "", &ExternalServiceError{Service: "youtube", Err: fmt.Errorf("no muxed formats available")}
	}

	stream, _, err := s.ytClient.GetStream(video, best)
	if err != nil {
		return "", &ExternalServiceError{Service: "youtube", Err: fmt.Errorf("failed to open stream: %w", err)}
	}
	defer stream.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, stream); err != nil {
		os.Remove(destPath)
		return "", &ExternalServiceError{Service: "youtube", Err: fmt.Errorf("failed to download stream: %w", err)}
	}

	return video.Title, nil
}
