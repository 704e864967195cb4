package domain

import "context"

// EventPublisher 集成事件发布接口。
// 实现采用事务性发件箱：事件写入与业务数据落库共用同一事务（tx 为事务句柄），
// 由独立的发件箱处理器异步推送到消息队列。
type EventPublisher interface {
	PublishInTx(ctx context.Context, tx any, topic, key string, event any) error
}
