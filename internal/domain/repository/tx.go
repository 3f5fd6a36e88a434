package repository

// TxRepos repositorios atados a una misma transacción.
type TxRepos struct {
	Trays     TrayRepository
	Items     LineItemRepository
	Events    AuditEventRepository
	Snapshots SnapshotRepository
}
