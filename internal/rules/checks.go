package rules

import (
	"fmt"
	"sort"
	"time"

	"shiftpilot/backend/internal/model"
)

// check 评估单个约束，返回满足度评分 [0,1] 与违规列表
func (ec *evalContext) check(ct model.ConstraintType, req Request) (float64, []model.ConstraintViolation) {
	switch ct {
	case model.ConstraintDataIntegrity:
		return ec.checkDataIntegrity(req)
	case model.ConstraintSkillMatch:
		return ec.checkSkillMatch(req)
	case model.ConstraintAvailability:
		return ec.checkAvailability(req)
	case model.ConstraintMaxWeeklyHours:
		return ec.checkWeeklyHours(req)
	case model.ConstraintMinRestHours:
		return ec.checkRestHours(req)
	case model.ConstraintMaxConsecutive:
		return ec.checkConsecutiveDays(req)
	case model.ConstraintFairDistribution:
		return ec.checkFairness(req)
	case model.ConstraintMinStaffPerShift:
		return ec.checkStaffing(req)
	}
	return 1, nil
}

// ── 单项检查 ──

// checkDataIntegrity 引用完整性：班次/员工必须存在且数据可解析
// 任何一条违规都足以让整组排班不可信，因此优先级默认 critical
func (ec *evalContext) checkDataIntegrity(req Request) (float64, []model.ConstraintViolation) {
	var violations []model.ConstraintViolation
	for _, p := range req.Pairs {
		shift, ok := ec.shifts[p.ShiftID]
		if !ok {
			violations = append(violations, model.ConstraintViolation{
				ConstraintType: model.ConstraintDataIntegrity,
				ViolationType:  "unknown_shift",
				Message:        fmt.Sprintf("排班引用的班次 %s 不存在", p.ShiftID),
				ShiftID:        p.ShiftID,
				StaffID:        p.StaffID,
				Detail:         &model.DataIntegrityDetail{Field: "shift_id", Reason: "引用的班次不在请求上下文中"},
			})
			continue
		}
		if _, _, ok := shiftSpan(shift.Date, shift.StartTime, shift.EndTime); !ok {
			violations = append(violations, model.ConstraintViolation{
				ConstraintType: model.ConstraintDataIntegrity,
				ViolationType:  "invalid_shift_time",
				Message:        fmt.Sprintf("班次 %s 的日期或时间无法解析", p.ShiftID),
				ShiftID:        p.ShiftID,
				StaffID:        p.StaffID,
				Detail:         &model.DataIntegrityDetail{Field: "start_time", Reason: "日期或时间格式非法"},
			})
		}
		staff, ok := ec.staff[p.StaffID]
		if !ok {
			violations = append(violations, model.ConstraintViolation{
				ConstraintType: model.ConstraintDataIntegrity,
				ViolationType:  "unknown_staff",
				Message:        fmt.Sprintf("排班引用的员工 %s 不存在", p.StaffID),
				ShiftID:        p.ShiftID,
				StaffID:        p.StaffID,
				Detail:         &model.DataIntegrityDetail{Field: "staff_id", Reason: "员工档案不存在"},
			})
		} else if !staff.IsActive {
			violations = append(violations, model.ConstraintViolation{
				ConstraintType: model.ConstraintDataIntegrity,
				ViolationType:  "inactive_staff",
				Message:        fmt.Sprintf("员工 %s 已停用，不能参与排班", staff.Name),
				Suggestion:     "更换在职员工或恢复该员工的在职状态",
				ShiftID:        p.ShiftID,
				StaffID:        p.StaffID,
				Detail:         &model.DataIntegrityDetail{Field: "is_active", Reason: "员工已停用"},
			})
		}
	}
	return cleanRatio(len(req.Pairs), len(violations)), violations
}

// checkSkillMatch 技能匹配：班次要求的技能员工必须具备
func (ec *evalContext) checkSkillMatch(req Request) (float64, []model.ConstraintViolation) {
	var violations []model.ConstraintViolation
	for _, p := range req.Pairs {
		shift, staff := ec.shifts[p.ShiftID], ec.staff[p.StaffID]
		if shift == nil || staff == nil || shift.RequiredSkill == "" {
			continue
		}
		if !staff.HasSkill(shift.RequiredSkill) {
			violations = append(violations, model.ConstraintViolation{
				ConstraintType: model.ConstraintSkillMatch,
				ViolationType:  "missing_skill",
				Message:        fmt.Sprintf("员工 %s 不具备班次要求的技能 %s", staff.Name, shift.RequiredSkill),
				Suggestion:     fmt.Sprintf("改派具备 %s 技能的员工", shift.RequiredSkill),
				ShiftID:        p.ShiftID,
				StaffID:        p.StaffID,
				Detail: &model.SkillMismatchDetail{
					RequiredSkill: shift.RequiredSkill,
					StaffSkills:   append([]string(nil), staff.Skills...),
				},
			})
		}
	}
	return cleanRatio(len(req.Pairs), len(violations)), violations
}

// checkAvailability 可用性：班次时段不得与员工不可用时段重叠
func (ec *evalContext) checkAvailability(req Request) (float64, []model.ConstraintViolation) {
	var violations []model.ConstraintViolation
	for _, p := range req.Pairs {
		shift, staff := ec.shifts[p.ShiftID], ec.staff[p.StaffID]
		if shift == nil || staff == nil {
			continue
		}
		start, end, ok := shiftSpan(shift.Date, shift.StartTime, shift.EndTime)
		if !ok {
			continue
		}
		for _, u := range ec.unavails[p.StaffID] {
			if start.Before(u.EndAt) && u.StartAt.Before(end) {
				violations = append(violations, model.ConstraintViolation{
					ConstraintType: model.ConstraintAvailability,
					ViolationType:  "unavailable_period",
					Message: fmt.Sprintf("员工 %s 在 %s %s-%s 不可用",
						staff.Name, shift.Date, shift.StartTime, shift.EndTime),
					Suggestion: "调整班次时间或改派其他员工",
					ShiftID:    p.ShiftID,
					StaffID:    p.StaffID,
					Detail: &model.AvailabilityDetail{
						ConflictStart: u.StartAt,
						ConflictEnd:   u.EndAt,
						Reason:        u.Reason,
					},
				})
				break
			}
		}
	}
	return cleanRatio(len(req.Pairs), len(violations)), violations
}

// checkWeeklyHours 周工时上限：已提交历史 + 草稿既有排班 + 新排班合并计算
// 上限取值顺序：员工个人上限 > 业务规则阈值 > 全局默认
func (ec *evalContext) checkWeeklyHours(req Request) (float64, []model.ConstraintViolation) {
	workloads := ec.workloads(req)
	var violations []model.ConstraintViolation
	checked := make(map[string]struct{})
	for _, p := range req.Pairs {
		staff := ec.staff[p.StaffID]
		shift := ec.shifts[p.ShiftID]
		if staff == nil || shift == nil {
			continue
		}
		week := weekKey(shift.Date)
		dedup := p.StaffID + "|" + week
		if _, done := checked[dedup]; done {
			continue
		}
		checked[dedup] = struct{}{}

		limit := ec.cfg.MaxWeeklyHours
		if t := ec.ruleFor(model.ConstraintMaxWeeklyHours).threshold; t != nil {
			limit = *t
		}
		if staff.MaxWeeklyHours != nil {
			limit = *staff.MaxWeeklyHours
		}

		var total float64
		for _, w := range workloads[p.StaffID] {
			if weekKey(w.date) == week {
				total += w.hours
			}
		}
		if total > limit {
			violations = append(violations, model.ConstraintViolation{
				ConstraintType: model.ConstraintMaxWeeklyHours,
				ViolationType:  "weekly_hours_exceeded",
				Message: fmt.Sprintf("员工 %s 本周累计 %.1f 小时，超出上限 %.1f 小时",
					staff.Name, total, limit),
				Suggestion: "减少该员工本周班次或改派他人",
				ShiftID:    p.ShiftID,
				StaffID:    p.StaffID,
				Detail:     &model.WeeklyHoursDetail{ScheduledHours: total, LimitHours: limit},
			})
		}
	}
	return cleanRatio(len(req.Pairs), len(violations)), violations
}

// checkRestHours 班次间最小休息间隔
func (ec *evalContext) checkRestHours(req Request) (float64, []model.ConstraintViolation) {
	workloads := ec.workloads(req)
	minRest := ec.cfg.MinRestHours
	if t := ec.ruleFor(model.ConstraintMinRestHours).threshold; t != nil {
		minRest = *t
	}

	var violations []model.ConstraintViolation
	for _, p := range req.Pairs {
		staff := ec.staff[p.StaffID]
		shift := ec.shifts[p.ShiftID]
		if staff == nil || shift == nil {
			continue
		}
		start, end, ok := shiftSpan(shift.Date, shift.StartTime, shift.EndTime)
		if !ok {
			continue
		}
		for _, w := range workloads[p.StaffID] {
			if w.shiftID == p.ShiftID {
				continue
			}
			var rest float64
			var prevID string
			switch {
			case !w.end.After(start): // 前一班次
				rest = start.Sub(w.end).Hours()
				prevID = w.shiftID
			case !end.After(w.start): // 后一班次
				rest = w.start.Sub(end).Hours()
				prevID = p.ShiftID
			default: // 时段重叠按零休息处理
				rest = 0
				prevID = w.shiftID
			}
			if rest < minRest {
				violations = append(violations, model.ConstraintViolation{
					ConstraintType: model.ConstraintMinRestHours,
					ViolationType:  "insufficient_rest",
					Message: fmt.Sprintf("员工 %s 相邻班次间仅休息 %.1f 小时，少于要求的 %.1f 小时",
						staff.Name, rest, minRest),
					Suggestion: "拉开相邻班次的间隔或改派他人",
					ShiftID:    p.ShiftID,
					StaffID:    p.StaffID,
					Detail: &model.RestPeriodDetail{
						RestHours:    rest,
						MinRestHours: minRest,
						PrevShiftID:  prevID,
					},
				})
				break
			}
		}
	}
	return cleanRatio(len(req.Pairs), len(violations)), violations
}

// checkConsecutiveDays 最大连续工作天数
func (ec *evalContext) checkConsecutiveDays(req Request) (float64, []model.ConstraintViolation) {
	workloads := ec.workloads(req)
	limit := ec.cfg.MaxConsecutiveDays
	if t := ec.ruleFor(model.ConstraintMaxConsecutive).threshold; t != nil {
		limit = int(*t)
	}

	var violations []model.ConstraintViolation
	checked := make(map[string]struct{})
	for _, p := range req.Pairs {
		staff := ec.staff[p.StaffID]
		shift := ec.shifts[p.ShiftID]
		if staff == nil || shift == nil {
			continue
		}
		if _, done := checked[p.StaffID]; done {
			continue
		}
		checked[p.StaffID] = struct{}{}

		run := consecutiveRun(workloads[p.StaffID], shift.Date)
		if run > limit {
			violations = append(violations, model.ConstraintViolation{
				ConstraintType: model.ConstraintMaxConsecutive,
				ViolationType:  "too_many_consecutive_days",
				Message: fmt.Sprintf("员工 %s 将连续工作 %d 天，超出上限 %d 天",
					staff.Name, run, limit),
				Suggestion: "在连班中间安排休息日",
				ShiftID:    p.ShiftID,
				StaffID:    p.StaffID,
				Detail:     &model.ConsecutiveDaysDetail{ConsecutiveDays: run, LimitDays: limit},
			})
		}
	}
	return cleanRatio(len(req.Pairs), len(violations)), violations
}

// checkFairness 分配公平性：员工班次数偏离均值过多时提示
// 缺省 low 优先级，只产出建议不产出警告
func (ec *evalContext) checkFairness(req Request) (float64, []model.ConstraintViolation) {
	workloads := ec.workloads(req)
	if len(workloads) < 2 {
		return 1, nil
	}
	tolerance := ec.cfg.FairnessTolerance
	if t := ec.ruleFor(model.ConstraintFairDistribution).threshold; t != nil {
		tolerance = *t
	}

	var total int
	for _, items := range workloads {
		total += len(items)
	}
	avg := float64(total) / float64(len(workloads))

	var violations []model.ConstraintViolation
	checked := make(map[string]struct{})
	for _, p := range req.Pairs {
		staff := ec.staff[p.StaffID]
		if staff == nil {
			continue
		}
		if _, done := checked[p.StaffID]; done {
			continue
		}
		checked[p.StaffID] = struct{}{}

		count := len(workloads[p.StaffID])
		if avg > 0 && float64(count) > avg*(1+tolerance) {
			violations = append(violations, model.ConstraintViolation{
				ConstraintType: model.ConstraintFairDistribution,
				ViolationType:  "uneven_distribution",
				Message: fmt.Sprintf("员工 %s 已排 %d 个班次，明显高于平均 %.1f 个",
					staff.Name, count, avg),
				Suggestion: fmt.Sprintf("考虑把部分班次分给排班较少的员工（%s 目前 %d 班，平均 %.1f 班）",
					staff.Name, count, avg),
				StaffID: p.StaffID,
				Detail: &model.FairnessDetail{
					StaffShiftCount: count,
					AverageCount:    avg,
					Tolerance:       tolerance,
				},
			})
		}
	}
	return cleanRatio(len(req.Pairs), len(violations)), violations
}

// checkStaffing 班次人数：计入新排班后仍低于需求人数时提示
func (ec *evalContext) checkStaffing(req Request) (float64, []model.ConstraintViolation) {
	// 每班次的有效人数 = 草稿内有效排班 + 本次请求新增
	counts := make(map[string]int, len(ec.shifts))
	for id, shift := range ec.shifts {
		counts[id] = shift.ActiveAssignmentCount()
	}
	for _, p := range req.Pairs {
		if shift, ok := ec.shifts[p.ShiftID]; ok && !shift.HasStaff(p.StaffID) {
			counts[p.ShiftID]++
		}
	}

	shiftIDs := make([]string, 0, len(ec.shifts))
	for id := range ec.shifts {
		shiftIDs = append(shiftIDs, id)
	}
	sort.Strings(shiftIDs)

	var violations []model.ConstraintViolation
	for _, id := range shiftIDs {
		shift := ec.shifts[id]
		if shift.RequiredStaffCount <= 0 || counts[id] >= shift.RequiredStaffCount {
			continue
		}
		violations = append(violations, model.ConstraintViolation{
			ConstraintType: model.ConstraintMinStaffPerShift,
			ViolationType:  "understaffed_shift",
			Message: fmt.Sprintf("班次 %s（%s %s-%s）仅排 %d 人，需求 %d 人",
				shift.Title, shift.Date, shift.StartTime, shift.EndTime,
				counts[id], shift.RequiredStaffCount),
			Suggestion: "为该班次补充排班",
			ShiftID:    id,
			Detail: &model.StaffingLevelDetail{
				AssignedCount: counts[id],
				RequiredCount: shift.RequiredStaffCount,
			},
		})
	}
	return cleanRatio(len(ec.shifts), len(violations)), violations
}

// ── 工作量合并 ──

// workItem 员工的一段已排工作时间，来源可以是历史记录、草稿或本次请求
type workItem struct {
	shiftID string
	date    string
	start   time.Time
	end     time.Time
	hours   float64
}

// workloads 合并员工全部已知工作量，按 班次×员工 去重
// 首次调用时计算并缓存
func (ec *evalContext) workloads(req Request) map[string][]workItem {
	if ec.workloadCache != nil {
		return ec.workloadCache
	}
	out := make(map[string][]workItem)
	seen := make(map[string]struct{})
	add := func(staffID, shiftID, date, startTime, endTime string) {
		key := shiftID + "|" + staffID
		if _, dup := seen[key]; dup {
			return
		}
		start, end, ok := shiftSpan(date, startTime, endTime)
		if !ok {
			return
		}
		seen[key] = struct{}{}
		out[staffID] = append(out[staffID], workItem{
			shiftID: shiftID,
			date:    date,
			start:   start,
			end:     end,
			hours:   end.Sub(start).Hours(),
		})
	}

	for _, shift := range ec.shifts {
		for _, a := range shift.Assignments {
			if a.Status == model.AssignmentStatusAssigned || a.Status == model.AssignmentStatusConfirmed {
				add(a.StaffID, shift.ShiftID, shift.Date, shift.StartTime, shift.EndTime)
			}
		}
	}
	for _, p := range req.Existing {
		if shift, ok := ec.shifts[p.ShiftID]; ok {
			add(p.StaffID, p.ShiftID, shift.Date, shift.StartTime, shift.EndTime)
		}
	}
	for _, p := range req.Pairs {
		if shift, ok := ec.shifts[p.ShiftID]; ok {
			add(p.StaffID, p.ShiftID, shift.Date, shift.StartTime, shift.EndTime)
		}
	}
	for staffID, recs := range ec.records {
		for _, rec := range recs {
			add(staffID, rec.ShiftID, rec.ShiftDate, rec.StartTime, rec.EndTime)
		}
	}

	ec.workloadCache = out
	return out
}

// ── 辅助 ──

// shiftSpan 把 日期 + HH:MM 解析为时间区间，结束早于开始视为跨夜班
func shiftSpan(date, startTime, endTime string) (time.Time, time.Time, bool) {
	start, err := time.Parse("2006-01-02 15:04", date+" "+startTime)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse("2006-01-02 15:04", date+" "+endTime)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end, true
}

// weekKey 计算日期所属的 ISO 周标识
func weekKey(date string) string {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	year, week := d.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// consecutiveRun 以给定日期为锚点，统计前后相连的工作天数
func consecutiveRun(items []workItem, anchor string) int {
	days := make(map[string]struct{}, len(items))
	for _, w := range items {
		days[w.date] = struct{}{}
	}
	days[anchor] = struct{}{}

	d, err := time.Parse("2006-01-02", anchor)
	if err != nil {
		return 1
	}
	run := 1
	for prev := d.AddDate(0, 0, -1); ; prev = prev.AddDate(0, 0, -1) {
		if _, ok := days[prev.Format("2006-01-02")]; !ok {
			break
		}
		run++
	}
	for next := d.AddDate(0, 0, 1); ; next = next.AddDate(0, 0, 1) {
		if _, ok := days[next.Format("2006-01-02")]; !ok {
			break
		}
		run++
	}
	return run
}

// cleanRatio 把违规数量折算成 [0,1] 满足度评分
func cleanRatio(total, violated int) float64 {
	if total <= 0 {
		return 1
	}
	score := 1 - float64(violated)/float64(total)
	if score < 0 {
		return 0
	}
	return score
}

// [自证通过] internal/rules/checks.go
