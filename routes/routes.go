package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/moimhub/club-system/handlers"
	"github.com/moimhub/club-system/middleware"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	Club       *handlers.ClubHandler
	Membership *handlers.MembershipHandler
	Group      *handlers.GroupHandler
	Board      *handlers.BoardHandler
	Schedule   *handlers.ScheduleHandler
	Ledger     *handlers.LedgerHandler
	Archive    *handlers.ArchiveHandler
	Chat       *handlers.ChatHandler
	WebSocket  *handlers.WebSocketHandler
}

func SetupRoutes(router *chi.Mux, h Handlers, jwtSecret string, allowedOrigins []string) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/swagger/*", httpSwagger.WrapHandler)

	// Публичные маршруты
	router.Post("/auth/register", h.Auth.Register)
	router.Post("/auth/login", h.Auth.Login)
	router.Get("/auth/availability", h.Auth.CheckAvailability)

	router.Get("/clubs", h.Club.ListClubs)
	router.Get("/clubs/{clubID}", h.Club.GetClub)

	// Защищенные маршруты
	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticator(jwtSecret))

		r.Post("/clubs", h.Club.CreateClub)

		r.Route("/clubs/{clubID}", func(r chi.Router) {
			r.Patch("/", h.Club.UpdateClub)
			r.Delete("/", h.Club.DeleteClub)
			r.Post("/cover", h.Club.UploadCover)
			r.Get("/overview", h.Club.Overview)

			r.Post("/members", h.Membership.RequestJoin)
			r.Get("/members", h.Membership.ListMembers)
			r.Post("/manager/transfer", h.Membership.TransferManager)

			r.Post("/groups", h.Group.CreateGroup)
			r.Get("/groups", h.Group.ListGroups)

			r.Post("/posts", h.Board.CreatePost)
			r.Get("/posts", h.Board.ListPosts)

			r.Post("/schedules", h.Schedule.CreateSchedule)
			r.Get("/schedules", h.Schedule.ListSchedules)

			r.Post("/ledger", h.Ledger.AddEntry)
			r.Get("/ledger", h.Ledger.ListEntries)
			r.Get("/ledger/summary", h.Ledger.Summary)

			r.Post("/folders", h.Archive.CreateFolder)
			r.Get("/folders", h.Archive.ListFolders)
			r.Delete("/folders/{folderID}", h.Archive.DeleteFolder)
			r.Post("/files", h.Archive.UploadFile)
			r.Get("/files", h.Archive.ListFiles)

			r.Get("/messages", h.Chat.History)
		})

		r.Route("/memberships/{membershipID}", func(r chi.Router) {
			r.Post("/approve", h.Membership.Approve)
			r.Post("/reject", h.Membership.Reject)
			r.Patch("/role", h.Membership.ChangeRole)
			r.Delete("/", h.Membership.Kick)
		})

		r.Route("/groups/{groupID}", func(r chi.Router) {
			r.Patch("/", h.Group.RenameGroup)
			r.Delete("/", h.Group.DeleteGroup)
			r.Post("/members", h.Group.AddMember)
			r.Get("/members", h.Group.ListGroupMembers)
			r.Delete("/members/{userID}", h.Group.RemoveMember)
			r.Post("/members/{userID}/promote", h.Group.PromoteLeader)
			r.Post("/members/{userID}/demote", h.Group.DemoteLeader)
		})

		r.Route("/posts/{postID}", func(r chi.Router) {
			r.Get("/", h.Board.GetPost)
			r.Delete("/", h.Board.DeletePost)
			r.Post("/comments", h.Board.AddComment)
			r.Delete("/comments/{commentID}", h.Board.DeleteComment)
			r.Post("/votes", h.Board.Vote)
		})

		r.Patch("/schedules/{scheduleID}", h.Schedule.UpdateSchedule)
		r.Delete("/schedules/{scheduleID}", h.Schedule.DeleteSchedule)

		r.Delete("/ledger/{entryID}", h.Ledger.DeleteEntry)

		r.Delete("/files/{fileID}", h.Archive.DeleteFile)

		r.Delete("/messages/{messageID}", h.Chat.DeleteMessage)

		r.Get("/ws/chat", h.WebSocket.ServeWs)
	})
}
