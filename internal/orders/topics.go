package orders

const (
	TopicTransactionCreated       = "transaction.created"
	TopicTransactionStatusChanged = "transaction.status_changed"
	TopicPaymentRecorded          = "payment.recorded"
)

// Partition key = transaction id, so every event of one order stays in order.
func PartitionKey(transactionID string) []byte { return []byte(transactionID) }
