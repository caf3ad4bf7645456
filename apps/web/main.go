package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"

	echoweb "github.com/trezcool/dormportal/apps/web/echo"
	"github.com/trezcool/dormportal/core"
	"github.com/trezcool/dormportal/core/attachment"
	"github.com/trezcool/dormportal/core/auth"
	"github.com/trezcool/dormportal/core/notify"
	"github.com/trezcool/dormportal/core/student"
	"github.com/trezcool/dormportal/core/user"
	emailsvc "github.com/trezcool/dormportal/services/email"
	"github.com/trezcool/dormportal/services/jobs"
	logsvc "github.com/trezcool/dormportal/services/logger"
	"github.com/trezcool/dormportal/services/oauth"
	"github.com/trezcool/dormportal/services/session"
	"github.com/trezcool/dormportal/storage/database"
	sqlxrepos "github.com/trezcool/dormportal/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "WEB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up uploads
	uploads := attachment.NewDiskManager(conf.UploadsDir, logger)
	if err = uploads.EnsureDir(); err != nil {
		logger.Fatal(fmt.Sprintf("setting up uploads: %v", err), err)
	}

	// set up services
	validate, translator := core.NewValidator()
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db))
	studentSvc := student.NewService(sqlxrepos.NewStudentRepository(db), uploads, validate, translator)

	mailSvc, err := emailsvc.NewService(conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up email: %v", err), err)
	}
	if err = mailSvc.CheckConfig(); err != nil {
		logger.Warn(fmt.Sprintf("email disabled: %v", err))
	}
	pool := jobs.NewPool(conf.Email.Workers, conf.Email.QueueSize, logger)
	dispatcher := notify.NewDispatcher(mailSvc, pool, conf.AppName, logger)

	sessions, err := session.NewStore(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up sessions: %v", err), err)
	}
	if closer, ok := sessions.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	var resolver oauth.Resolver
	if conf.GoogleConfigured() {
		if resolver, err = oauth.NewGoogleResolver(conf); err != nil {
			logger.Fatal(fmt.Sprintf("setting up google login: %v", err), err)
		}
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	core.ParseEmailTemplates(logger, conf.Debug)

	// =========================================================================
	// Start Web Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server, err := echoweb.NewServer(
		&echoweb.Options{
			Address:        conf.Server.Addr,
			SignalShutdown: func() {
				select {
				case shutdown <- syscall.SIGTERM:
				default:
				}
			},
		},
		&echoweb.Deps{
			Conf:       conf,
			Logger:     logger,
			Gate:       auth.NewGate(conf),
			Sessions:   sessions,
			UserSvc:    usrSvc,
			StudentSvc: studentSvc,
			Notifier:   dispatcher,
			OAuth:      resolver,
		},
	)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up server: %v", err), err)
	}

	go server.Start()

	// =========================================================================
	// Shutdown

	sig := <-shutdown
	logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	// give outstanding requests and queued emails a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()

	if err = server.Stop(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
	}
	if err = pool.Close(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not drain email queue: %v", err), err)
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
