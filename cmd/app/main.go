// @title iCOM Service API
// @version 1.0.0
// @description API для доставки полей облучения на LINAC по протоколу iCOM и публикации событий в Kafka и MQTT.
// @host localhost:8082
// @BasePath /api/v1
package main

import "github.com/iwtcode/icomService/internal/app"

func main() {
	// Создаем и запускаем новый экземпляр приложения fx
	app.New().Run()
}
