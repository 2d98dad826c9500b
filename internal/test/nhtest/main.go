package main

import (
	"github.com/Azure/azure-notification-hubs-go/internal/test/nhtest/cmd"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cmd.Execute()
}
