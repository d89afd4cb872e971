package router

import (
	"github.com/erp/treasury/internal/interfaces/http/handler"
)

// TreasuryRoutes returns the cash box, ledger and movement routes
func TreasuryRoutes(h *handler.TreasuryHandler) *Group {
	g := NewGroup("/treasury")

	g.POST("/cash-box-types", h.CreateType)
	g.GET("/cash-box-types", h.ListTypes)
	g.DELETE("/cash-box-types/:id", h.DeleteType)

	g.POST("/cash-boxes", h.CreateCashBox)
	g.GET("/cash-boxes", h.ListCashBoxes)
	g.GET("/cash-boxes/:id", h.GetCashBox)
	g.DELETE("/cash-boxes/:id", h.DeleteCashBox)
	g.POST("/cash-boxes/:id/default", h.SetDefaultCashBox)
	g.GET("/cash-boxes/:id/balance", h.GetBalance)
	g.GET("/cash-boxes/:id/entries", h.ListEntries)
	g.POST("/cash-boxes/:id/reconcile", h.Reconcile)

	g.POST("/deposits", h.Deposit)
	g.POST("/withdrawals", h.Withdraw)
	g.POST("/transfers", h.Transfer)
	g.GET("/entries/:id", h.GetEntry)
	g.POST("/entries/:id/reverse", h.Reverse)

	return g
}

// InstallmentRoutes returns the installment plan and payment routes
func InstallmentRoutes(h *handler.InstallmentHandler) *Group {
	g := NewGroup("/installments")

	g.POST("/plans", h.CreatePlan)
	g.GET("/plans", h.ListPlans)
	g.POST("/plans/mark-overdue", h.MarkOverdue)
	g.GET("/plans/:id", h.GetPlan)
	g.POST("/plans/:id/cancel", h.CancelPlan)
	g.GET("/plans/:id/payments", h.ListPlanPayments)

	g.POST("/payments", h.PayInstallments)
	g.GET("/payments/:id", h.GetPayment)

	return g
}

// SystemRoutes returns the system routes served under the API prefix
func SystemRoutes(h *handler.SystemHandler) *Group {
	g := NewGroup("/system")
	g.GET("/ping", h.Ping)
	g.GET("/info", h.GetSystemInfo)
	return g
}
