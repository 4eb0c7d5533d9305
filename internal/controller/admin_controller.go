// FILE: internal/controller/admin_controller.go
package controller

import (
	"ai-docchat-be/internal/pkg/serverutils"
	"ai-docchat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAdminController interface {
	RegisterRoutes(r fiber.Router)
	GetSessionStats(ctx *fiber.Ctx) error
	ClearSession(ctx *fiber.Ctx) error
	ClearAllSessions(ctx *fiber.Ctx) error
	GetLogs(ctx *fiber.Ctx) error
}

type adminController struct {
	adminService service.IAdminService
}

func NewAdminController(adminService service.IAdminService) IAdminController {
	return &adminController{
		adminService: adminService,
	}
}

func (c *adminController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/admin/v1")
	h.Use(serverutils.JwtMiddleware, serverutils.AdminMiddleware)
	h.Get("sessions/stats", c.GetSessionStats)
	h.Delete("sessions/:userId", c.ClearSession)
	h.Delete("sessions", c.ClearAllSessions)
	h.Get("logs", c.GetLogs)
}

func (c *adminController) GetSessionStats(ctx *fiber.Ctx) error {
	res, err := c.adminService.GetSessionStats(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show session stats", res))
}

func (c *adminController) ClearSession(ctx *fiber.Ctx) error {
	userID := ctx.Params("userId")
	if userID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing user id")
	}

	res, err := c.adminService.ClearSession(ctx.Context(), userID)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success clear session", res))
}

func (c *adminController) ClearAllSessions(ctx *fiber.Ctx) error {
	res, err := c.adminService.ClearAllSessions(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success clear all sessions", res))
}

func (c *adminController) GetLogs(ctx *fiber.Ctx) error {
	level := ctx.Query("level")
	limit := ctx.QueryInt("limit", 100)
	offset := ctx.QueryInt("offset", 0)

	res, err := c.adminService.GetLogs(ctx.Context(), level, limit, offset)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show logs", res))
}
