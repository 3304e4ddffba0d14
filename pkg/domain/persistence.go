package domain

import "context"

// TransactionView provides read-only access to the state visible inside a
// transaction. Finders return NotFoundError when the record does not exist.
type TransactionView interface {
	FindClient(id string) (Client, error)
	FindInvoice(id string) (Invoice, error)
	FindAgroTest(id string) (AgroTest, error)
	FindAgroTestByCode(code string) (AgroTest, error)
	FindTestParameter(id string) (TestParameter, error)
	FindOrder(id string) (Order, error)
	FindOrderItem(id string) (OrderItem, error)
	ListOrderItems(orderID string) ([]OrderItem, error)
	FindSample(id string) (Sample, error)
	ListSamples() ([]Sample, error)
	ListSamplesByOrder(orderID string) ([]Sample, error)
	ListTestResults(sampleID string) ([]TestResult, error)
	FindReport(id string) (Report, error)
	FindReportByOrder(orderID string) (Report, error)
	FindReportByNumber(number string) (Report, error)
}

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	TransactionView
	CreateClient(Client) (Client, error)
	CreateInvoice(Invoice) (Invoice, error)
	CreateAgroTest(AgroTest) (AgroTest, error)
	CreateOrder(Order) (Order, error)
	// LockOrder re-reads the order, taking a row lock where the backend
	// supports one so concurrent completions of the same order serialize.
	LockOrder(id string) (Order, error)
	UpdateOrder(id string, mutator func(*Order) error) (Order, error)
	CreateOrderItem(OrderItem) (OrderItem, error)
	CreateSample(Sample) (Sample, error)
	UpdateSample(id string, mutator func(*Sample) error) (Sample, error)
	// UpsertTestResult inserts the result or updates the existing row keyed by
	// (SampleID, ParameterID).
	UpsertTestResult(TestResult) (TestResult, error)
	// CreateReport fails with ErrConsistencyViolation when the order already
	// owns a report.
	CreateReport(Report) (Report, error)
	UpdateReport(id string, mutator func(*Report) error) (Report, error)
}

// PersistentStore is a minimal abstraction over durable backends.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	Close() error
}
