package main

import (
	"os"

	"github.com/materia-tech/vector-backend/internal/app"
	config "github.com/materia-tech/vector-backend/internal/cfg"
	"github.com/materia-tech/vector-backend/pkg/logger"
)

//	@title			Vector Backend API
//	@version		1.0
//	@description	Генерация embedding-векторов и взвешенный мультимодальный поиск по каталогу

//	@host		localhost:8080
//	@BasePath	/api/v1

func main() {
	log := logger.NewSlogLogger()

	cfg, err := config.Load(log)
	if err != nil {
		log.Errorf(err, "failed to load config")
		os.Exit(1)
	}

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Errorf(err, "failed to initialize app")
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		os.Exit(1)
	}
}
