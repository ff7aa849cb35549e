package constants

// Имена очередей
const (
	QueueListingSync = "search.listing.sync"
	QueueUserSync    = "search.user.sync"
)

// Ключи маршрутизации
const (
	RoutingKeyListingEvents = "listing.*"
	RoutingKeyUserEvents    = "user.*"
	RoutingKeyReindexResult = "search.reindex.result"
)

const ExchangeTypeTopic = "topic"

const (
	FinalDLXExchange   = "search_sync_final_dlx"
	FinalDLQ           = "search_sync_final_dlq"
	FinalDLQRoutingKey = "search.sync.dlq.key"
)

// RetryExchange и RetryQueue сателлиты очереди для отложенных ретраев
func RetryExchange(queue string) string { return queue + "_retry_ex" }
func RetryQueue(queue string) string    { return queue + "_retry_wait" }
