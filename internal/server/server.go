// Package server assembles the fiber application and its routes.
package server

import (
	"strings"
	"time"

	"merchcheck-backend/internal/admin"
	"merchcheck-backend/internal/audit"
	"merchcheck-backend/internal/auth"
	"merchcheck-backend/internal/config"
	"merchcheck-backend/internal/dashboard"
	"merchcheck-backend/internal/entry"
	"merchcheck-backend/internal/httpx"
	"merchcheck-backend/internal/media"
	"merchcheck-backend/internal/report"
	"merchcheck-backend/internal/taxonomy"
	"merchcheck-backend/internal/web"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

// New builds the HTTP application. The caller owns db and store.
func New(cfg *config.Config, db *gorm.DB, store *media.Service) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "merchcheck",
		Views:                 web.Engine(cfg.TemplateReload),
		ErrorHandler:          httpx.ErrorHandler,
		BodyLimit:             cfg.MaxUploadMB * 1024 * 1024,
		ReadTimeout:           2 * time.Minute,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(httpx.AccessLog())

	origins := strings.Split(cfg.CORSOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	allowOrigins := strings.Join(origins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowCredentials: allowOrigins != "*",
	}))

	app.Use("/static", filesystem.New(filesystem.Config{Root: web.Static()}))
	app.Static(media.URLPrefix, store.Local().Dir())

	app.Use(auth.Authenticate(cfg, db))

	var (
		userPage  = auth.RequireUser(auth.Redirect)
		userAPI   = auth.RequireUser(auth.JSON)
		adminPage = auth.RequireAdmin(auth.Redirect)
		adminAPI  = auth.RequireAdmin(auth.JSON)
	)

	loginLimit := limiter.New(limiter.Config{
		Max:          10,
		Expiration:   time.Minute,
		LimitReached: tooMany,
	})
	exportLimit := limiter.New(limiter.Config{
		Max:          6,
		Expiration:   time.Minute,
		LimitReached: tooMany,
	})

	taxonomySvc := taxonomy.NewService(db)
	entrySvc := entry.NewService(db, store)
	dashboardSvc := dashboard.NewService(db, store)
	adminSvc := admin.NewService(db)
	generator := report.NewGenerator(store, cfg.ExportConcurrency)

	// Auth
	app.Get("/", auth.LoginPageHandler())
	app.Get("/login", auth.LoginPageHandler())
	app.Post("/login", loginLimit, auth.LoginHandler(cfg, db))
	app.Get("/logout", auth.LogoutHandler(cfg))
	app.Get("/me", userAPI, auth.MeHandler())
	app.Post("/change_admin_password", adminAPI, auth.ChangeAdminPasswordHandler(db))

	// Taxonomy
	app.Get("/get_dynamic_data/:type", userAPI, taxonomy.GetDynamicDataHandler(taxonomySvc))
	app.Get("/admin_management", adminPage, admin.AdminManagementPageHandler())
	app.Get("/get_management_data/:type", adminAPI, taxonomy.GetManagementDataHandler(taxonomySvc))
	app.Post("/manage_data", adminAPI, taxonomy.ManageDataHandler(taxonomySvc))

	// Data entry
	app.Get("/data_entry", userPage, entry.DataEntryPageHandler())
	app.Post("/submit_data", userAPI, entry.SubmitHandler(entrySvc))
	app.Get("/get_branches", userAPI, entry.GetBranchesHandler(entrySvc))
	app.Get("/get_branch_by_code", userAPI, entry.GetBranchByCodeHandler(entrySvc))

	// Dashboard & reports
	app.Get("/admin_dashboard", adminPage, dashboard.AdminDashboardPageHandler(dashboardSvc, store.Configured()))
	app.Get("/get_entries", adminAPI, dashboard.GetEntriesHandler(dashboardSvc))
	app.Get("/get_filter_options", adminAPI, dashboard.GetFilterOptionsHandler(dashboardSvc))
	app.Delete("/delete_entry/:id", adminAPI, dashboard.DeleteEntryHandler(dashboardSvc))
	app.Get("/download_image/:filename", adminAPI, media.DownloadImageHandler(store.Local()))
	app.Get("/export_excel", adminPage, exportLimit, report.ExportHandler(dashboardSvc, generator, store, report.WithImages))
	app.Get("/export_excel_simple", adminPage, exportLimit, report.ExportHandler(dashboardSvc, generator, store, report.WithLinks))

	// Users
	app.Get("/user_management", adminPage, admin.UserManagementPageHandler(adminSvc))
	app.Get("/get_users", adminAPI, admin.GetUsersHandler(adminSvc))
	app.Post("/manage_user", adminAPI, admin.ManageUserHandler(adminSvc))
	app.Post("/manage_user_branches", adminAPI, admin.ManageUserBranchesHandler(adminSvc))
	app.Get("/get_user_branches/:id", adminAPI, admin.GetUserBranchesHandler(adminSvc))

	app.Get("/audit_logs", adminAPI, audit.ListAuditLogsHandler(db))

	return app
}

func tooMany(c *fiber.Ctx) error {
	return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, try again later")
}
