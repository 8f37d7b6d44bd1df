package gateway

// Result helpers keep failure construction uniform across operations.

func webFormFailed(status WebFormStatus, message string) WebFormResult {
	return WebFormResult{Status: status, Message: message}
}

func webFormSuccess(redirectURL string) WebFormResult {
	return WebFormResult{Status: WebFormOK, RedirectURL: redirectURL}
}

func captureFailed(status CaptureStatus, message string) CaptureResult {
	return CaptureResult{Status: status, Message: message}
}

func transferFailed(status PaymentStatus, message string) TransferResult {
	return TransferResult{Status: status, Message: message}
}

func deleteTokenFailed(status DeleteTokenStatus, message string) DeleteTokenResult {
	return DeleteTokenResult{Status: status, Message: message}
}
