package main

import (
	"log"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	flag "github.com/spf13/pflag"

	"aakit/config"
	"aakit/controllers"
	"aakit/routes"
)

func main() {
	listen := flag.String("listen", ":8080", "address to serve on")
	dsn := flag.String("mysql-dsn", "", "MySQL DSN (defaults to MYSQL_DSN)")
	flag.Parse()

	config.LoadEnv()

	entryPointHex := config.GetEnv("ENTRYPOINT_ADDRESS")
	if entryPointHex == "" {
		entryPointHex = config.DefaultEntryPoint
	}
	entryPoint := common.HexToAddress(entryPointHex)

	db, err := config.ConnectDB(*dsn)
	if err != nil {
		log.Fatalf("Failed to connect to MySQL: %v", err)
	}

	userOpController, err := controllers.NewUserOpController(db, entryPoint)
	if err != nil {
		log.Fatalf("Failed to create UserOpController: %v", err)
	}
	if err := userOpController.InitSchema(); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	r := gin.Default()
	routes.SetupUserOpRouter(r, userOpController)
	routes.SetupStatusRouter(r, entryPoint)

	if err := r.Run(*listen); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
