package main

//go:generate swag init -g cmd/monitor/main.go -o docs

// @title           Mandi Price Service API
// @version         0.1.0
// @description     Commodity price resolution, trend analysis, and sync controls.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
