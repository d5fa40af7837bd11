// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package detect

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/clearfeed/gatekeeper/internal/media"
	"github.com/clearfeed/gatekeeper/internal/metrics"
)

// sanitizeMetadata checks format-level tags against the meta blacklist and,
// on a hit, rewrites the container with all metadata stripped, replacing
// the source in place. .rmvb is exempt: the mux tool cannot faithfully
// remux that container.
func (e *Engine) sanitizeMetadata(ctx context.Context, source string, metaKeywords []string) {
	if strings.EqualFold(filepath.Ext(source), ".rmvb") {
		return
	}
	e.logf("🧹 [检测] 检查元数据标签...")
	tags := e.Toolkit.ProbeFormatTags(ctx, source)

	hit, words := matchKeywordsFold(tags, metaKeywords)
	if !hit {
		return
	}
	metrics.KeywordHits.WithLabelValues("meta").Inc()
	e.logf("🚫 发现敏感标签: %v -> 执行清洗...", words)

	out := scrubSibling(source, "_clean_meta")
	err := e.Toolkit.Remux(ctx, source, out, media.RemuxSpec{
		Maps:          []string{"0:v:0", "0:a?", "0:s?"},
		StripMetadata: true,
	})
	if err != nil {
		// Non-fatal: the audio scan still gets its chance to catch the file.
		e.logf("⚠️ 元数据清洗失败: %v", err)
		return
	}
	if err := e.Toolkit.ReplaceSource(out, source); err != nil {
		e.logf("⚠️ 元数据清洗失败: %v", err)
		return
	}
	e.logf("✅ 元数据已清洗")
}

// scrubSubtitles extracts every subtitle track to WebVTT, marks tracks with
// blacklist hits dirty and, when any exist, rewrites the container keeping
// only the clean ones. Returns the new path ("" when nothing changed). The
// original file is deleted after the verified rewrite.
func (e *Engine) scrubSubtitles(ctx context.Context, source string, subKeywords []string) string {
	if len(subKeywords) == 0 {
		return ""
	}
	e.logf("📝 [检测] 分析字幕内容...")

	all := e.Toolkit.ProbeSubtitleIndices(ctx, source)
	if len(all) == 0 {
		return ""
	}

	dirty := map[string]struct{}{}
	for _, idx := range all {
		text := e.Toolkit.ExtractSubtitleWebVTT(ctx, source, idx)
		if text == "" {
			continue
		}
		for _, kw := range subKeywords {
			if kw != "" && strings.Contains(text, kw) {
				e.logf("🚫 字幕轨 #%s 命中: %s", idx, kw)
				dirty[idx] = struct{}{}
				break
			}
		}
	}
	if len(dirty) == 0 {
		return ""
	}
	metrics.KeywordHits.WithLabelValues("subtitle").Inc()
	e.logf("🧹 剔除违规字幕...")

	maps := []string{"0:v:0", "0:a?"}
	for _, idx := range all {
		if _, bad := dirty[idx]; !bad {
			maps = append(maps, "0:"+idx)
		}
	}

	out := scrubSibling(source, "_clean")
	if err := e.Toolkit.Remux(ctx, source, out, media.RemuxSpec{Maps: maps}); err != nil {
		e.logf("⚠️ 字幕清洗失败: %v", err)
		return ""
	}
	if err := os.Remove(source); err != nil {
		e.logf("⚠️ 原文件删除失败: %v", err)
	}
	e.logf("✅ 字幕清洗完成")
	return out
}

// scrubSibling names the rewrite target next to the source.
func scrubSibling(source, suffix string) string {
	dir := filepath.Dir(source)
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, fmt.Sprintf("%s%s%s", stem, suffix, ext))
}
