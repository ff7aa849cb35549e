package export_api_client

// exportPage страница выгрузки сервиса-владельца
type exportPage struct {
	Content []map[string]interface{} `json:"content"`
	Last    bool                     `json:"last"`
}
