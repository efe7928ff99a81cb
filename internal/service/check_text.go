package service

import (
	"math"
	"strconv"
	"strings"

	"github.com/timmy/vcheck/internal/domain"
)

// BuildCheckText renders a video and its analysis into the text embedded for
// a check run: one fact per line in a fixed order, absent fields omitted.
// Equal inputs always render equal text.
func BuildCheckText(video *domain.LearningVideo, analysis *domain.VideoAnalysis) string {
	var b checkTextBuilder

	if video != nil {
		b.line("動画タイトル", normalizeWhitespace(video.Title))
		if video.DurationSeconds != nil {
			b.line("動画尺", formatNumber(*video.DurationSeconds)+"秒")
		}
	}
	if analysis == nil {
		return b.String()
	}

	if intro := analysis.Structure.Intro; intro != nil {
		b.line("冒頭フック時間", formatNumber(intro.End-intro.Start)+"秒")
		b.line("フック強度", normalizeWhitespace(intro.HookStrength))
	}
	b.line("CTA位置", normalizeWhitespace(analysis.Structure.CTAPosition))

	if analysis.CutFrequency != nil {
		b.line("カット間隔", formatNumber(*analysis.CutFrequency)+"秒")
	}
	b.line("テンポ", normalizeWhitespace(analysis.Pace))

	b.line("テロップスタイル", normalizeWhitespace(analysis.TelopStyle.Type))
	b.line("テロップフォントサイズ", normalizeWhitespace(analysis.TelopStyle.FontSize))

	color := analysis.ColorScheme
	b.line("主要色", strings.Join(dedupeStrings(color.DominantColors), ", "))
	b.line("色温度", normalizeWhitespace(color.Temperature))
	if color.Brightness != nil {
		b.line("明るさレベル", formatNumber(*color.Brightness))
	}
	if color.Saturation != nil {
		b.line("彩度レベル", formatNumber(*color.Saturation))
	}

	if has := analysis.BGM.HasBGM; has != nil {
		if *has {
			b.line("BGM有無", "あり")
			b.line("BGMジャンル", normalizeWhitespace(analysis.BGM.Genre))
		} else {
			b.line("BGM有無", "なし")
		}
	}

	b.line("検出された課題", strings.Join(dedupeStrings(analysis.RawAnalysis.Weaknesses), ", "))
	b.line("使用画角", strings.Join(dedupeStrings(analysis.RawAnalysis.ShotTypes), ", "))

	return b.String()
}

type checkTextBuilder struct {
	lines []string
}

// line appends "label: value", skipping empty values.
func (b *checkTextBuilder) line(label, value string) {
	if value == "" {
		return
	}
	b.lines = append(b.lines, label+": "+value)
}

func (b *checkTextBuilder) String() string {
	return strings.Join(b.lines, "\n")
}

// formatNumber prints at most three decimals without trailing zeros.
func formatNumber(f float64) string {
	return strconv.FormatFloat(math.Round(f*1000)/1000, 'f', -1, 64)
}

func normalizeWhitespace(text string) string {
	if text == "" {
		return ""
	}
	return strings.Join(strings.Fields(text), " ")
}

func dedupeStrings(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := normalizeWhitespace(item)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

// summarizeMatch renders the human-readable line stored with each match.
func summarizeMatch(t *domain.FeedbackTemplate) string {
	excerpt := []rune(t.FeedbackText)
	if len(excerpt) > 50 {
		excerpt = excerpt[:50]
	}
	return string(t.Category) + "カテゴリの過去指摘と類似しています: \"" + string(excerpt) + "...\""
}
