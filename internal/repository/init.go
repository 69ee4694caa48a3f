package repository

import (
	"gorm.io/gorm"

	"github.com/partsvault/approvalstack/interfaces"
	"github.com/partsvault/approvalstack/internal/models"
)

type Repositories struct {
	PendingApprovalRepository interfaces.PendingApprovalRepository
	PurchaseOrderRepository   interfaces.PurchaseOrderRepository
	RerouteLogRepository      interfaces.RerouteLogRepository
	ApprovalStore             interfaces.ApprovalStore
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		PendingApprovalRepository: NewPendingApprovalRepository(db),
		PurchaseOrderRepository:   NewPurchaseOrderRepository(db),
		RerouteLogRepository:      NewRerouteLogRepository(db),
		ApprovalStore:             NewApprovalStore(db),
	}
}

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.PendingApproval{},
		&models.PurchaseOrder{},
		&models.RerouteLogEntry{},
	)
}
