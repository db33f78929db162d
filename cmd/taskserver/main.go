package main

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"tasksync/internal/logging"
	"tasksync/internal/taskserver"
)

func main() {
	cfg := taskserver.LoadConfig()
	logger := logging.New(cfg.LogLevel)

	db, err := sql.Open("sqlite", cfg.DatabaseURL)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	repo := taskserver.NewTaskRepo(db)
	if err := repo.InitSchema(); err != nil {
		panic(err)
	}
	svc := taskserver.NewTaskService(repo)
	h := taskserver.NewTaskHandler(svc)
	r := taskserver.NewRouter(cfg, logger, h)

	addr := ":" + cfg.Port
	fmt.Printf("taskserver listening on %s\n", addr)
	if err := r.Run(addr); err != nil {
		panic(err)
	}
}
