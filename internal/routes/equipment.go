package routes

import (
	"github.com/labstack/echo/v4"

	"lending-system/internal/controllers"
)

func runEquipmentRouter(secureGroup *echo.Group, ctrl *controllers.EquipmentController) {
	{
		secureGroup.GET("/equipments", ctrl.GetEquipments)
		secureGroup.GET("/equipments/export", ctrl.ExportEquipments)
		secureGroup.GET("/equipments/:id", ctrl.FindEquipment)
		secureGroup.GET("/equipments/:id/availability", ctrl.CheckAvailability)
		secureGroup.POST("/equipments", ctrl.CreateEquipment)
		secureGroup.PUT("/equipments/:id", ctrl.UpdateEquipment)
		secureGroup.DELETE("/equipments/:id", ctrl.ArchiveEquipment)
	}
}
