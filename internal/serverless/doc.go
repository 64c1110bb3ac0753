// Package serverless runs the proxy's echo router inside AWS Lambda.
//
// API Gateway delivers each request as an event: HTTP APIs send
// events.APIGatewayV2HTTPRequest (payload format 2.0) and REST APIs send
// events.APIGatewayProxyRequest (payload format 1.0). The Adapter hands each
// event to the aws-lambda-go-api-proxy echo adapter, which serves it with the
// same router the long-running server uses.
//
// Example:
//
//	adapter := serverless.NewAdapter(e, logger)
//	lambda.Start(adapter.HandleV2)
package serverless
