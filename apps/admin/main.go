package main

import (
	"log"
	"os"

	"github.com/trezcool/dormportal/core"
	"github.com/trezcool/dormportal/core/attachment"
	"github.com/trezcool/dormportal/core/student"
	"github.com/trezcool/dormportal/core/user"
	logsvc "github.com/trezcool/dormportal/services/logger"
	"github.com/trezcool/dormportal/storage/database"
	sqlxrepos "github.com/trezcool/dormportal/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()
	cli := commandLine{conf: conf, out: os.Stdout}

	// the database may not exist yet
	if len(os.Args) > 1 && os.Args[1] != "createdb" {
		db, err := database.Open(conf)
		errAndDie(err)
		defer db.Close()

		validate, translator := core.NewValidator()
		uploads := attachment.NewDiskManager(conf.UploadsDir, logsvc.NewRollbarLogger(logger, conf))

		cli.db = db.DB
		cli.usrSvc = user.NewService(sqlxrepos.NewUserRepository(db))
		cli.studentSvc = student.NewService(sqlxrepos.NewStudentRepository(db), uploads, validate, translator)
	}

	// start CLI
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
