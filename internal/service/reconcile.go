package service

import (
	"sort"

	"github.com/24Tech-io/nursepor-stable-sub005/internal/dto"
	"github.com/24Tech-io/nursepor-stable-sub005/internal/model"
)

// ════════════════════════════════════════════════════════════
// 归并器 — 双账本 + 申请队列 → 单一报名视图
// ════════════════════════════════════════════════════════════
//
// 纯函数，无任何 IO。归并规则：
//  1. 以权威账本种子建图：进度取权威值
//  2. 仅存在于遗留账本的课程补入：进度与访问时间取遗留值
//  3. 两边都有时：进度保留权威值，遗留的 last_accessed_at 严格更新时替换
//  4. 有待审申请的课程从"已报名"集合降级为 requested——
//     按不变量 (1) 两者不应并存，此覆盖是针对陈旧数据的防御性展示策略，
//     不代表认可该不一致状态
//  5. 其余已发布课程标记 available
//
// 确定性：输入集合以任意顺序给出，输出恒按 course_id 升序。

// MergeEnrollmentState 归并单个学生的报名视图
func MergeEnrollmentState(
	courses []model.Course,
	records []model.EnrollmentRecord,
	facts []model.EnrollmentFact,
	pending []model.AccessRequest,
) []dto.EnrollmentView {
	enrolled := make(map[string]*dto.EnrollmentView)

	// 1. 权威账本种子
	for i := range records {
		rec := &records[i]
		if rec.Status != model.EnrollmentStatusActive {
			continue
		}
		enrolled[rec.CourseID] = &dto.EnrollmentView{
			CourseID:        rec.CourseID,
			Status:          dto.ViewStatusEnrolled,
			ProgressPercent: rec.ProgressPercent,
		}
	}

	// 2/3. 遗留账本补充与时间戳回填
	for i := range facts {
		fact := &facts[i]
		if v, ok := enrolled[fact.CourseID]; ok {
			// 两边都有：权威进度不动，更新的访问时间回填
			if v.LastAccessedAt == nil || fact.LastAccessedAt.After(*v.LastAccessedAt) {
				t := fact.LastAccessedAt
				v.LastAccessedAt = &t
			}
			continue
		}
		t := fact.LastAccessedAt
		enrolled[fact.CourseID] = &dto.EnrollmentView{
			CourseID:        fact.CourseID,
			Status:          dto.ViewStatusEnrolled,
			ProgressPercent: fact.ProgressPercent,
			LastAccessedAt:  &t,
		}
	}

	// 4. 待审申请覆盖（同课程多条待审时取最早一条；时间相同取 ID 小者，
	// 保证输出与输入顺序无关）
	requested := make(map[string]*model.AccessRequest, len(pending))
	for i := range pending {
		req := &pending[i]
		if req.Status != model.RequestStatusPending {
			continue
		}
		cur, ok := requested[req.CourseID]
		if !ok ||
			req.RequestedAt.Before(cur.RequestedAt) ||
			(req.RequestedAt.Equal(cur.RequestedAt) && req.RequestID < cur.RequestID) {
			requested[req.CourseID] = req
		}
	}

	// 5. 按目录拼装输出
	views := make([]dto.EnrollmentView, 0, len(courses))
	for i := range courses {
		course := &courses[i]
		view := dto.EnrollmentView{
			CourseID: course.CourseID,
			Title:    course.Title,
			Status:   dto.ViewStatusAvailable,
		}
		if v, ok := enrolled[course.CourseID]; ok {
			view.Status = dto.ViewStatusEnrolled
			view.ProgressPercent = v.ProgressPercent
			view.LastAccessedAt = v.LastAccessedAt
		}
		if req, ok := requested[course.CourseID]; ok {
			view.Status = dto.ViewStatusRequested
			view.RequestID = req.RequestID
		}
		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool { return views[i].CourseID < views[j].CourseID })
	return views
}
