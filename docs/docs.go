// Package docs регистрирует описание API для gin-swagger.
// Файл обновляется командой swag init -g cmd/app/main.go.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/connect": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Connection"],
                "summary": "Получить список подключений",
                "responses": {
                    "200": {"description": "Список подключений", "schema": {"$ref": "#/definitions/models.GetConnectionsResponse"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Connection"],
                "summary": "Создать подключение",
                "parameters": [
                    {"description": "IP адрес LINAC и имя аппарата", "name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.ConnectionRequest"}}
                ],
                "responses": {
                    "200": {"description": "Успешное создание подключения", "schema": {"$ref": "#/definitions/models.CreateConnectionResponse"}},
                    "400": {"description": "Неверный формат запроса", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Подключение к этому адресу уже активно", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "500": {"description": "Внутренняя ошибка сервера или LINAC недоступен", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "delete": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Connection"],
                "summary": "Удалить подключение",
                "parameters": [
                    {"description": "ID сессии для удаления", "name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.SessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "Сообщение об успешном удалении", "schema": {"$ref": "#/definitions/models.MessageResponse"}},
                    "404": {"description": "Подключение не найдено", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/connect/{session_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Connection"],
                "summary": "Состояние подключения",
                "parameters": [
                    {"type": "string", "description": "ID сессии", "name": "session_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Состояние подключения", "schema": {"$ref": "#/definitions/models.CreateConnectionResponse"}},
                    "404": {"description": "Подключение не найдено", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/playlist/{session_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Playlist"],
                "summary": "Очередь полей",
                "parameters": [
                    {"type": "string", "description": "ID сессии", "name": "session_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Состояние очереди", "schema": {"$ref": "#/definitions/models.PlaylistResponse"}},
                    "404": {"description": "Сессия не найдена", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/playlist/files": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Playlist"],
                "summary": "Добавить файлы в очередь",
                "parameters": [
                    {"description": "Пути к файлам и подмены значений", "name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.FilesRequest"}}
                ],
                "responses": {
                    "200": {"description": "Состояние очереди", "schema": {"$ref": "#/definitions/models.PlaylistResponse"}},
                    "404": {"description": "Сессия не найдена", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "422": {"description": "Часть файлов не добавлена", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/playlist/sequence": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Playlist"],
                "summary": "Запустить последовательность",
                "parameters": [
                    {"description": "ID сессии и имя последовательности", "name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.SequenceRequest"}}
                ],
                "responses": {
                    "200": {"description": "Состояние очереди", "schema": {"$ref": "#/definitions/models.PlaylistResponse"}},
                    "404": {"description": "Сессия или последовательность не найдена", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/playlist/control/{action}": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Playlist"],
                "summary": "Управление очередью",
                "parameters": [
                    {"enum": ["play", "pause", "stop", "skip", "previous", "repeat", "restart"], "type": "string", "description": "Действие", "name": "action", "in": "path", "required": true},
                    {"description": "ID сессии", "name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.SessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "Состояние очереди", "schema": {"$ref": "#/definitions/models.PlaylistResponse"}},
                    "400": {"description": "Неизвестное действие", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "404": {"description": "Сессия не найдена", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Сессия не подключена", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/sequences": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Sequences"],
                "summary": "Каталог последовательностей",
                "responses": {
                    "200": {"description": "Каталог", "schema": {"$ref": "#/definitions/models.SequencesResponse"}}
                }
            }
        },
        "/plans/convert": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Plans"],
                "summary": "Конвертировать план",
                "parameters": [
                    {"description": "Путь к плану и каталог для EFS файлов", "name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.ConvertRequest"}}
                ],
                "responses": {
                    "200": {"description": "Записанные файлы и ошибки пучков", "schema": {"$ref": "#/definitions/models.ConvertResponse"}},
                    "500": {"description": "План не прочитан", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/deliveries/{session_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Deliveries"],
                "summary": "История доставки",
                "parameters": [
                    {"type": "string", "description": "ID сессии", "name": "session_id", "in": "path", "required": true},
                    {"type": "integer", "default": 100, "description": "Максимум записей", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "История доставки", "schema": {"$ref": "#/definitions/models.DeliveriesResponse"}}
                }
            }
        }
    },
    "definitions": {
        "models.ConnectionRequest": {
            "type": "object",
            "required": ["ip"],
            "properties": {
                "ip": {"type": "string"},
                "machine_name": {"type": "string"}
            }
        },
        "models.SessionRequest": {
            "type": "object",
            "required": ["session_id"],
            "properties": {
                "session_id": {"type": "string"}
            }
        },
        "models.ConnectionInfo": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "ip": {"type": "string"},
                "machine_name": {"type": "string"},
                "hostname": {"type": "string"},
                "created_at": {"type": "string"},
                "connected": {"type": "boolean"},
                "status": {"type": "string"},
                "phase": {"type": "string"},
                "machine_state": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "models.FilesRequest": {
            "type": "object",
            "required": ["paths", "session_id"],
            "properties": {
                "session_id": {"type": "string"},
                "paths": {"type": "array", "items": {"type": "string"}},
                "mu": {"type": "number"},
                "dose_rate": {"type": "number"},
                "patient_id": {"type": "string"},
                "patient_name": {"type": "string"}
            }
        },
        "models.SequenceRequest": {
            "type": "object",
            "required": ["name", "session_id"],
            "properties": {
                "session_id": {"type": "string"},
                "name": {"type": "string"}
            }
        },
        "models.ConvertRequest": {
            "type": "object",
            "required": ["path"],
            "properties": {
                "path": {"type": "string"},
                "out_dir": {"type": "string"}
            }
        },
        "models.ErrorResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "error"},
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "integer", "example": 404},
                        "message": {"type": "string", "example": "Подключение не найдено"}
                    }
                }
            }
        },
        "models.MessageResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "ok"},
                "message": {"type": "string", "example": "Playlist stopped"}
            }
        },
        "models.CreateConnectionResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "ok"},
                "connection_info": {"$ref": "#/definitions/models.ConnectionInfo"}
            }
        },
        "models.GetConnectionsResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "ok"},
                "pool_size": {"type": "integer", "example": 1},
                "connections": {"type": "array", "items": {"$ref": "#/definitions/models.ConnectionInfo"}}
            }
        },
        "models.PlaylistResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "ok"},
                "playlist": {"type": "object"}
            }
        },
        "models.SequencesResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "ok"},
                "groups": {"type": "array", "items": {"type": "object"}}
            }
        },
        "models.ConvertResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "ok"},
                "result": {"type": "object"}
            }
        },
        "models.DeliveriesResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "ok"},
                "deliveries": {"type": "array", "items": {"type": "object"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8082",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "iCOM Service API",
	Description:      "API для доставки полей облучения на LINAC по протоколу iCOM и публикации событий в Kafka и MQTT.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
