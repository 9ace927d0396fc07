package routes

import (
	"github.com/labstack/echo/v4"

	"lending-system/internal/controllers"
)

func runBorrowRouter(secureGroup *echo.Group, ctrl *controllers.BorrowController) {
	{
		secureGroup.POST("/borrows", ctrl.Submit)
		secureGroup.GET("/borrows", ctrl.GetBorrows)
		secureGroup.POST("/borrows/direct-checkout", ctrl.DirectCheckout)
		secureGroup.GET("/borrows/:id", ctrl.FindBorrow)
		secureGroup.POST("/borrows/:id/approve", ctrl.Approve)
		secureGroup.POST("/borrows/:id/reject", ctrl.Reject)
		secureGroup.POST("/borrows/:id/checkout", ctrl.Checkout)
		secureGroup.POST("/borrows/:id/return-request", ctrl.RequestReturn)
		secureGroup.POST("/borrows/:id/return-confirm", ctrl.ConfirmReturn)
		secureGroup.POST("/borrows/:id/cancel", ctrl.Cancel)
	}
	{
		secureGroup.POST("/borrow-groups/:groupId/approve", ctrl.ApproveGroup)
		secureGroup.POST("/borrow-groups/:groupId/reject", ctrl.RejectGroup)
		secureGroup.POST("/borrow-groups/:groupId/checkout", ctrl.CheckoutGroup)
		secureGroup.POST("/borrow-groups/:groupId/return-request", ctrl.RequestReturnGroup)
		secureGroup.POST("/borrow-groups/:groupId/return-confirm", ctrl.ConfirmReturnGroup)
	}
}
