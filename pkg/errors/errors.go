package errors

import "errors"

// ErrSessionClosed 编辑会话已关闭：迟到的校验/同步结果应被丢弃而非应用
var ErrSessionClosed = errors.New("编辑会话已关闭")

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrConflictNotFound 指定的编辑冲突不存在
var ErrConflictNotFound = errors.New("冲突记录不存在")

// ErrConflictResolved 冲突已用其他方式处理，不能再变更
var ErrConflictResolved = errors.New("冲突已处理，不能变更处理方式")

// ErrMergeNotApplicable merge 仅适用于并发修改类冲突
var ErrMergeNotApplicable = errors.New("该冲突类型不支持合并处理")
